package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecalculateAllRewritesEveryEnrollment(t *testing.T) {
	fx := newGradingFixture(t, 3)
	midterm := fx.addAssignment(t, fx.exams, "Midterm", 100)
	fx.addSubmission(t, midterm, fx.students[0].ID, 95)
	fx.addSubmission(t, midterm, fx.students[1].ID, 85)

	results, err := fx.recalculator(nil).RecalculateAll(context.Background(), fx.class.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)

	want := []string{"A", "B", "E"}
	for i, student := range fx.students {
		grade := fx.storedGrade(t, student.ID)
		require.NotNil(t, grade)
		require.Equal(t, want[i], *grade)
	}

	require.ElementsMatch(t, []uint{fx.students[0].ID, fx.students[1].ID, fx.students[2].ID}, fx.gpaCache.invalidated)
	require.Len(t, fx.events.events, 3)
	require.Equal(t, fx.class.ID, fx.events.events[0].ClassID)
	require.NotNil(t, fx.events.events[0].Percentage)
}

func TestRecalculateWritesNullWhenUngraded(t *testing.T) {
	fx := newGradingFixture(t, 1)
	student := fx.students[0].ID
	fx.setGrade(t, student, "A")

	result, err := fx.recalculator(nil).Recalculate(context.Background(), fx.class.ID, student)
	require.NoError(t, err)
	require.False(t, result.Graded)
	require.Nil(t, fx.storedGrade(t, student))

	require.Len(t, fx.events.events, 1)
	require.Nil(t, fx.events.events[0].Grade)
	require.Nil(t, fx.events.events[0].Percentage)
}

func TestRecalculateAllRollsBackOnPersistenceFailure(t *testing.T) {
	fx := newGradingFixture(t, 3)
	quiz := fx.addAssignment(t, fx.homework, "Quiz", 10)
	for _, student := range fx.students {
		fx.addSubmission(t, quiz, student.ID, 10)
	}

	recalc := fx.recalculator(failingEnrollments{EnrollmentRepository: fx.repos.Enrollments, failFor: fx.students[2].ID})
	_, err := recalc.RecalculateAll(context.Background(), fx.class.ID)
	require.ErrorIs(t, err, ErrGradePersistence)
	require.ErrorContains(t, err, "disk full")

	for _, student := range fx.students {
		require.Nil(t, fx.storedGrade(t, student.ID))
	}
	require.Empty(t, fx.gpaCache.invalidated)
	require.Empty(t, fx.events.events)
}

func TestRecalculateRequiresEnrollment(t *testing.T) {
	fx := newGradingFixture(t, 1)
	outsider := fx.students[0]
	require.NoError(t, fx.db.Exec("DELETE FROM enrollments WHERE student_id = ?", outsider.ID).Error)

	_, err := fx.recalculator(nil).Recalculate(context.Background(), fx.class.ID, outsider.ID)
	require.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestRecalculateUnknownReferences(t *testing.T) {
	fx := newGradingFixture(t, 1)
	recalc := fx.recalculator(nil)

	_, err := recalc.RecalculateAll(context.Background(), 4040)
	require.ErrorIs(t, err, ErrClassNotFound)

	_, err = recalc.Recalculate(context.Background(), fx.class.ID, 4040)
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	fx := newGradingFixture(t, 1)
	student := fx.students[0].ID
	essay := fx.addAssignment(t, fx.homework, "Essay", 20)
	fx.addSubmission(t, essay, student, 15)

	recalc := fx.recalculator(nil)
	first, err := recalc.Recalculate(context.Background(), fx.class.ID, student)
	require.NoError(t, err)
	second, err := recalc.Recalculate(context.Background(), fx.class.ID, student)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, "C", *fx.storedGrade(t, student))
}
