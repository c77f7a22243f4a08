package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

func newGradingDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

type recordingGPACache struct {
	mu          sync.Mutex
	invalidated []uint
}

func (r *recordingGPACache) InvalidateGPA(_ context.Context, studentID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, studentID)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []GradeEvent
}

func (r *recordingEvents) PublishGradeUpdated(_ context.Context, event GradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// failingEnrollments fails grade writes for a single student.
type failingEnrollments struct {
	repository.EnrollmentRepository
	failFor uint
}

func (f failingEnrollments) WriteGrade(ctx context.Context, classID, studentID uint, grade *string) error {
	if studentID == f.failFor {
		return fmt.Errorf("disk full")
	}
	return f.EnrollmentRepository.WriteGrade(ctx, classID, studentID, grade)
}

type gradingFixture struct {
	db       *gorm.DB
	class    models.Class
	students []models.Student
	homework models.AssignmentCategory
	exams    models.AssignmentCategory
	repos    GradebookRepositories
	gpaCache *recordingGPACache
	events   *recordingEvents
}

func newGradingFixture(t *testing.T, studentCount int) *gradingFixture {
	t.Helper()

	db := newGradingDB(t)
	fx := &gradingFixture{
		db:       db,
		gpaCache: &recordingGPACache{},
		events:   &recordingEvents{},
		repos: GradebookRepositories{
			Classes:     repository.NewClassRepository(db),
			Students:    repository.NewStudentRepository(db),
			Categories:  repository.NewCategoryRepository(db),
			Assignments: repository.NewAssignmentRepository(db),
			Submissions: repository.NewSubmissionRepository(db),
			Enrollments: repository.NewEnrollmentRepository(db),
			Gradebook:   repository.NewGradebookRepository(db),
			Transactor:  repository.NewTransactor(db),
		},
	}

	fx.class = models.Class{Subject: "CS", Number: 3500, Season: "Fall", Year: 2024, Location: "WEB L104"}
	require.NoError(t, db.Omit(clause.Associations).Create(&fx.class).Error)

	fx.homework = models.AssignmentCategory{ClassID: fx.class.ID, Name: "Homework", Weight: 40}
	fx.exams = models.AssignmentCategory{ClassID: fx.class.ID, Name: "Exams", Weight: 60}
	require.NoError(t, db.Omit(clause.Associations).Create(&fx.homework).Error)
	require.NoError(t, db.Omit(clause.Associations).Create(&fx.exams).Error)

	for i := 0; i < studentCount; i++ {
		student := models.Student{UID: fmt.Sprintf("u%07d", i+1), FirstName: "Student", LastName: fmt.Sprintf("%d", i+1)}
		require.NoError(t, db.Create(&student).Error)
		fx.students = append(fx.students, student)
		fx.enroll(t, student.ID)
	}

	return fx
}

func (fx *gradingFixture) enroll(t *testing.T, studentID uint) {
	t.Helper()
	require.NoError(t, fx.db.Omit(clause.Associations).Create(&models.Enrollment{ClassID: fx.class.ID, StudentID: studentID}).Error)
}

func (fx *gradingFixture) addAssignment(t *testing.T, category models.AssignmentCategory, name string, maxPoints float64) models.Assignment {
	t.Helper()
	assignment := models.Assignment{CategoryID: category.ID, Name: name, MaxPoints: maxPoints, DueDate: time.Now().Add(24 * time.Hour)}
	require.NoError(t, fx.db.Omit(clause.Associations).Create(&assignment).Error)
	return assignment
}

func (fx *gradingFixture) addSubmission(t *testing.T, assignment models.Assignment, studentID uint, score float64) models.Submission {
	t.Helper()
	submission := models.Submission{AssignmentID: assignment.ID, StudentID: studentID, Score: score, Contents: "answer", SubmittedAt: time.Now().UTC()}
	require.NoError(t, fx.db.Omit(clause.Associations).Create(&submission).Error)
	return submission
}

func (fx *gradingFixture) storedGrade(t *testing.T, studentID uint) *string {
	t.Helper()
	enrollment, err := fx.repos.Enrollments.Get(context.Background(), fx.class.ID, studentID)
	require.NoError(t, err)
	return enrollment.Grade
}

func (fx *gradingFixture) setGrade(t *testing.T, studentID uint, grade string) {
	t.Helper()
	require.NoError(t, fx.repos.Enrollments.WriteGrade(context.Background(), fx.class.ID, studentID, &grade))
}

func (fx *gradingFixture) recalculator(enrollments repository.EnrollmentRepository) *GradeRecalculator {
	if enrollments == nil {
		enrollments = fx.repos.Enrollments
	}
	aggregator := NewGradeAggregator(fx.repos.Classes, fx.repos.Students, fx.repos.Gradebook, NewGradeScale("E"), zerolog.Nop())
	return NewGradeRecalculator(aggregator, fx.repos.Classes, enrollments, fx.repos.Transactor, NewClassLocker(), fx.gpaCache, fx.events, zerolog.Nop())
}
