package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/repository"
)

const gradingTracerName = "github.com/noah-isme/gema-lms-api/internal/service/grading"

// CategoryScore is one category's share of a computed grade.
type CategoryScore struct {
	CategoryID  uint    `json:"category_id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Assignments int     `json:"assignments"`
	Earned      float64 `json:"earned"`
	MaxPoints   float64 `json:"max_points"`
	Percentage  float64 `json:"percentage"`
	Included    bool    `json:"included"`
}

// GradeResult is the outcome of aggregating one student's work in one class. When Graded is false
// the student has no gradable work and Letter is empty.
type GradeResult struct {
	ClassID      uint            `json:"class_id"`
	StudentID    uint            `json:"student_id"`
	Graded       bool            `json:"graded"`
	Percentage   float64         `json:"percentage"`
	Letter       string          `json:"letter,omitempty"`
	ActiveWeight float64         `json:"active_weight"`
	Categories   []CategoryScore `json:"categories"`
}

// LetterOrNil returns the letter as the nullable value stored on the enrollment.
func (r GradeResult) LetterOrNil() *string {
	if !r.Graded {
		return nil
	}
	letter := r.Letter
	return &letter
}

// GradeAggregator computes a student's weighted percentage and letter grade for a class.
type GradeAggregator interface {
	Compute(ctx context.Context, classID, studentID uint) (GradeResult, error)
}

type gradeAggregator struct {
	classes   repository.ClassRepository
	students  repository.StudentRepository
	gradebook repository.GradebookRepository
	scale     GradeScale
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewGradeAggregator constructs the aggregator over the gradebook read side.
func NewGradeAggregator(classes repository.ClassRepository, students repository.StudentRepository, gradebook repository.GradebookRepository, scale GradeScale, logger zerolog.Logger) GradeAggregator {
	return &gradeAggregator{
		classes:   classes,
		students:  students,
		gradebook: gradebook,
		scale:     scale,
		logger:    logger.With().Str("component", "grade_aggregator").Logger(),
		tracer:    otel.Tracer(gradingTracerName),
	}
}

func (a *gradeAggregator) Compute(ctx context.Context, classID, studentID uint) (GradeResult, error) {
	ctx, span := a.tracer.Start(ctx, "grading.aggregate")
	span.SetAttributes(
		attribute.Int64("grading.class_id", int64(classID)),
		attribute.Int64("grading.student_id", int64(studentID)),
	)
	defer span.End()

	if _, err := a.classes.GetByID(ctx, classID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "class_lookup_failed")
		return GradeResult{}, translateNotFound(err, ErrClassNotFound)
	}
	if _, err := a.students.GetByID(ctx, studentID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student_lookup_failed")
		return GradeResult{}, translateNotFound(err, ErrStudentNotFound)
	}

	categories, err := a.gradebook.ListCategories(ctx, classID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "category_lookup_failed")
		return GradeResult{}, err
	}

	result := GradeResult{
		ClassID:    classID,
		StudentID:  studentID,
		Categories: make([]CategoryScore, 0, len(categories)),
	}

	var totalContribution float64
	for _, category := range categories {
		assignments, err := a.gradebook.ListAssignments(ctx, category.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "assignment_lookup_failed")
			return GradeResult{}, err
		}

		score := CategoryScore{
			CategoryID:  category.ID,
			Name:        category.Name,
			Weight:      category.Weight,
			Assignments: len(assignments),
		}

		for _, assignment := range assignments {
			submission, err := a.gradebook.GetSubmission(ctx, assignment.ID, studentID)
			switch {
			case err == nil:
				score.Earned += submission.Score
			case errors.Is(err, gorm.ErrRecordNotFound):
				// never submitted, nothing earned
			default:
				span.RecordError(err)
				span.SetStatus(codes.Error, "submission_lookup_failed")
				return GradeResult{}, err
			}
			score.MaxPoints += assignment.MaxPoints
		}

		// Empty categories and categories worth zero points carry no weight at all.
		if len(assignments) == 0 || score.MaxPoints <= 0 {
			result.Categories = append(result.Categories, score)
			continue
		}
		if category.Weight < 0 {
			a.logger.Warn().Uint("category_id", category.ID).Float64("weight", category.Weight).Msg("ignoring category with negative weight")
			result.Categories = append(result.Categories, score)
			continue
		}

		percentage := score.Earned / score.MaxPoints
		score.Percentage = percentage * 100
		score.Included = true

		totalContribution += percentage * category.Weight
		result.ActiveWeight += category.Weight
		result.Categories = append(result.Categories, score)
	}

	if result.ActiveWeight <= 0 {
		span.SetAttributes(attribute.Bool("grading.graded", false))
		return result, nil
	}

	result.Graded = true
	result.Percentage = totalContribution * 100 / result.ActiveWeight
	result.Letter = a.scale.Letter(result.Percentage)

	span.SetAttributes(
		attribute.Bool("grading.graded", true),
		attribute.Float64("grading.percentage", result.Percentage),
		attribute.String("grading.letter", result.Letter),
	)

	return result, nil
}

func translateNotFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
