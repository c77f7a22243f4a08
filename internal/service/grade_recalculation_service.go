package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

const (
	recalcScopeStudent = "student"
	recalcScopeClass   = "class"
)

// GradeRecalculationService recomputes enrollment grades and persists them.
type GradeRecalculationService interface {
	Recalculate(ctx context.Context, classID, studentID uint) (GradeResult, error)
	RecalculateAll(ctx context.Context, classID uint) ([]GradeResult, error)
}

// GPACacheInvalidator drops any cached GPA for a student.
type GPACacheInvalidator interface {
	InvalidateGPA(ctx context.Context, studentID uint) error
}

// GradeRecalculator is the single entry point for rewriting Enrollment.grade. Every recalculation
// runs under the class lock and inside one transaction, and the enrollment write is the last step
// for each student.
type GradeRecalculator struct {
	aggregator  GradeAggregator
	classes     repository.ClassRepository
	enrollments repository.EnrollmentRepository
	tx          repository.Transactor
	locks       *ClassLocker
	gpaCache    GPACacheInvalidator
	events      GradeEventPublisher
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradeRecalculator wires the recalculation trigger. gpaCache and events may be nil.
func NewGradeRecalculator(aggregator GradeAggregator, classes repository.ClassRepository, enrollments repository.EnrollmentRepository, tx repository.Transactor, locks *ClassLocker, gpaCache GPACacheInvalidator, events GradeEventPublisher, logger zerolog.Logger) *GradeRecalculator {
	if locks == nil {
		locks = NewClassLocker()
	}

	return &GradeRecalculator{
		aggregator:  aggregator,
		classes:     classes,
		enrollments: enrollments,
		tx:          tx,
		locks:       locks,
		gpaCache:    gpaCache,
		events:      events,
		logger:      logger.With().Str("component", "grade_recalculator").Logger(),
		tracer:      otel.Tracer(gradingTracerName),
		now:         time.Now,
	}
}

// Recalculate recomputes and persists one student's grade in a class.
func (r *GradeRecalculator) Recalculate(ctx context.Context, classID, studentID uint) (GradeResult, error) {
	unlock := r.locks.Lock(classID)
	defer unlock()

	ctx, span := r.tracer.Start(ctx, "grading.recalculate")
	span.SetAttributes(
		attribute.Int64("grading.class_id", int64(classID)),
		attribute.Int64("grading.student_id", int64(studentID)),
	)
	defer span.End()

	start := r.now()
	var result GradeResult
	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = r.recalculateStudent(txCtx, classID, studentID)
		return err
	})
	r.observe(recalcScopeStudent, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recalculation_failed")
		return GradeResult{}, err
	}

	r.settle(ctx, result)
	return result, nil
}

// RecalculateAll recomputes and persists the grade of every student enrolled in the class. Either
// every enrollment is rewritten or none is.
func (r *GradeRecalculator) RecalculateAll(ctx context.Context, classID uint) ([]GradeResult, error) {
	unlock := r.locks.Lock(classID)
	defer unlock()

	ctx, span := r.tracer.Start(ctx, "grading.recalculate_all")
	span.SetAttributes(attribute.Int64("grading.class_id", int64(classID)))
	defer span.End()

	start := r.now()
	var results []GradeResult
	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		results, err = r.recalculateClass(txCtx, classID)
		return err
	})
	r.observe(recalcScopeClass, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recalculation_failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("grading.enrollments", len(results)))
	r.settle(ctx, results...)
	return results, nil
}

// recalculateStudent must run with the class lock held and ctx bound to a transaction.
func (r *GradeRecalculator) recalculateStudent(ctx context.Context, classID, studentID uint) (GradeResult, error) {
	result, err := r.aggregator.Compute(ctx, classID, studentID)
	if err != nil {
		return GradeResult{}, err
	}

	if err := r.enrollments.WriteGrade(ctx, classID, studentID, result.LetterOrNil()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return GradeResult{}, ErrEnrollmentNotFound
		}
		r.logger.Error().Err(err).Uint("class_id", classID).Uint("student_id", studentID).Msg("failed to write enrollment grade")
		return GradeResult{}, fmt.Errorf("%w: class %d student %d: %w", ErrGradePersistence, classID, studentID, err)
	}

	return result, nil
}

// recalculateClass must run with the class lock held and ctx bound to a transaction.
func (r *GradeRecalculator) recalculateClass(ctx context.Context, classID uint) ([]GradeResult, error) {
	if _, err := r.classes.GetByID(ctx, classID); err != nil {
		return nil, translateNotFound(err, ErrClassNotFound)
	}

	studentIDs, err := r.enrollments.ListStudentIDs(ctx, classID)
	if err != nil {
		return nil, err
	}

	results := make([]GradeResult, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		result, err := r.recalculateStudent(ctx, classID, studentID)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

// settle runs the post-commit side effects. They never fail the recalculation.
func (r *GradeRecalculator) settle(ctx context.Context, results ...GradeResult) {
	changedAt := r.now().UTC()
	correlationID := middleware.CorrelationIDFromContext(ctx)
	for _, result := range results {
		if r.gpaCache != nil {
			if err := r.gpaCache.InvalidateGPA(ctx, result.StudentID); err != nil {
				r.logger.Warn().Err(err).Uint("student_id", result.StudentID).Msg("failed to invalidate gpa cache")
			}
		}

		if r.events != nil {
			event := GradeEvent{
				CorrelationID: correlationID,
				ClassID:       result.ClassID,
				StudentID:     result.StudentID,
				Grade:         result.LetterOrNil(),
				ChangedAt:     changedAt,
			}
			if result.Graded {
				percentage := result.Percentage
				event.Percentage = &percentage
			}
			if err := r.events.PublishGradeUpdated(ctx, event); err != nil {
				r.logger.Warn().Err(err).Uint("class_id", result.ClassID).Uint("student_id", result.StudentID).Msg("failed to publish grade event")
			}
		}
	}
}

func (r *GradeRecalculator) observe(scope string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrGradePersistence):
		outcome = "persistence_failure"
	default:
		outcome = "error"
	}

	observability.GradeRecalculations().WithLabelValues(scope, outcome).Inc()
	observability.GradeRecalculationDuration().WithLabelValues(scope).Observe(r.now().Sub(start).Seconds())
}
