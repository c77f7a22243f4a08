package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// GradebookService implements the gradebook mutations that feed the recalculation trigger.
type GradebookService interface {
	Enroll(ctx context.Context, classID, studentID uint) (dto.EnrollmentResponse, error)
	ListEnrollments(ctx context.Context, studentID uint) ([]dto.EnrollmentResponse, error)
	CreateCategory(ctx context.Context, classID uint, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error)
	CreateAssignment(ctx context.Context, categoryID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Submit(ctx context.Context, assignmentID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error)
	GradeSubmission(ctx context.Context, assignmentID, studentID uint, payload dto.GradeSubmissionRequest) (dto.SubmissionResponse, error)
	ClassGrade(ctx context.Context, classID, studentID uint) (dto.ClassGradeResponse, error)
	AssignmentSubmissions(ctx context.Context, assignmentID uint) ([]dto.AssignmentSubmissionResponse, error)
	ClassAssignments(ctx context.Context, classID, studentID uint) ([]dto.StudentAssignmentResponse, error)
	SubmissionText(ctx context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error)
}

// GradebookRepositories groups the stores the gradebook service writes through.
type GradebookRepositories struct {
	Classes     repository.ClassRepository
	Students    repository.StudentRepository
	Categories  repository.CategoryRepository
	Assignments repository.AssignmentRepository
	Submissions repository.SubmissionRepository
	Enrollments repository.EnrollmentRepository
	Gradebook   repository.GradebookRepository
	Transactor  repository.Transactor
}

type gradebookService struct {
	repos      GradebookRepositories
	aggregator GradeAggregator
	recalc     *GradeRecalculator
	validator  *validator.Validate
	// sanitizer cleans professor-authored assignment instructions, which are rendered as HTML.
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	now        func() time.Time
}

// NewGradebookService constructs the gradebook service.
func NewGradebookService(repos GradebookRepositories, aggregator GradeAggregator, recalc *GradeRecalculator, validate *validator.Validate, logger zerolog.Logger) GradebookService {
	return &gradebookService{
		repos:      repos,
		aggregator: aggregator,
		recalc:     recalc,
		validator:  validate,
		sanitizer:  bluemonday.UGCPolicy(),
		logger:     logger.With().Str("component", "gradebook_service").Logger(),
		now:        time.Now,
	}
}

func (s *gradebookService) Enroll(ctx context.Context, classID, studentID uint) (dto.EnrollmentResponse, error) {
	if _, err := s.repos.Classes.GetByID(ctx, classID); err != nil {
		return dto.EnrollmentResponse{}, translateNotFound(err, ErrClassNotFound)
	}
	if _, err := s.repos.Students.GetByID(ctx, studentID); err != nil {
		return dto.EnrollmentResponse{}, translateNotFound(err, ErrStudentNotFound)
	}

	if _, err := s.repos.Enrollments.Get(ctx, classID, studentID); err == nil {
		return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.EnrollmentResponse{}, err
	}

	enrollment := models.Enrollment{ClassID: classID, StudentID: studentID}
	if err := s.repos.Enrollments.Create(ctx, &enrollment); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	s.logger.Info().Uint("class_id", classID).Uint("student_id", studentID).Msg("student enrolled")

	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *gradebookService) ListEnrollments(ctx context.Context, studentID uint) ([]dto.EnrollmentResponse, error) {
	if _, err := s.repos.Students.GetByID(ctx, studentID); err != nil {
		return nil, translateNotFound(err, ErrStudentNotFound)
	}

	enrollments, err := s.repos.Enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return dto.NewEnrollmentResponseSlice(enrollments), nil
}

func (s *gradebookService) CreateCategory(ctx context.Context, classID uint, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error) {
	payload.Name = strings.TrimSpace(payload.Name)
	if err := s.validator.Struct(payload); err != nil {
		return dto.CategoryResponse{}, err
	}

	if _, err := s.repos.Classes.GetByID(ctx, classID); err != nil {
		return dto.CategoryResponse{}, translateNotFound(err, ErrClassNotFound)
	}

	exists, err := s.repos.Categories.ExistsByName(ctx, classID, payload.Name)
	if err != nil {
		return dto.CategoryResponse{}, err
	}
	if exists {
		return dto.CategoryResponse{}, ErrCategoryExists
	}

	category := models.AssignmentCategory{
		ClassID: classID,
		Name:    payload.Name,
		Weight:  payload.Weight,
	}
	if err := s.repos.Categories.Create(ctx, &category); err != nil {
		return dto.CategoryResponse{}, err
	}

	s.logger.Info().Uint("class_id", classID).Uint("category_id", category.ID).Msg("assignment category created")

	return dto.NewCategoryResponse(category), nil
}

// CreateAssignment inserts the assignment and rewrites every enrolled student's grade in the same
// transaction, so the new max points are reflected before the caller sees success.
func (s *gradebookService) CreateAssignment(ctx context.Context, categoryID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	payload.Name = strings.TrimSpace(payload.Name)
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	category, err := s.repos.Categories.GetByID(ctx, categoryID)
	if err != nil {
		return dto.AssignmentResponse{}, translateNotFound(err, ErrCategoryNotFound)
	}

	unlock := s.recalc.locks.Lock(category.ClassID)
	defer unlock()

	assignment := models.Assignment{
		CategoryID: category.ID,
		Name:       payload.Name,
		MaxPoints:  payload.MaxPoints,
		Contents:   strings.TrimSpace(s.sanitizer.Sanitize(payload.Contents)),
		DueDate:    payload.DueDate,
	}

	start := s.recalc.now()
	var results []GradeResult
	err = s.repos.Transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		exists, err := s.repos.Assignments.ExistsByName(txCtx, category.ID, payload.Name)
		if err != nil {
			return err
		}
		if exists {
			return ErrAssignmentExists
		}

		if err := s.repos.Assignments.Create(txCtx, &assignment); err != nil {
			return err
		}

		results, err = s.recalc.recalculateClass(txCtx, category.ClassID)
		return err
	})
	if !errors.Is(err, ErrAssignmentExists) {
		s.recalc.observe(recalcScopeClass, start, err)
	}
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.recalc.settle(ctx, results...)
	s.logger.Info().Uint("assignment_id", assignment.ID).Int("recalculated", len(results)).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment, category.ClassID, len(results)), nil
}

// Submit stores a student's text submission. A first submission starts with a score of zero; a
// resubmission replaces the contents and time and keeps whatever score was already given.
// Contents are stored exactly as submitted.
func (s *gradebookService) Submit(ctx context.Context, assignmentID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := validateContents(payload.Contents); err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, translateNotFound(err, ErrAssignmentNotFound)
	}
	if _, err := s.repos.Students.GetByID(ctx, payload.StudentID); err != nil {
		return dto.SubmissionResponse{}, translateNotFound(err, ErrStudentNotFound)
	}
	if _, err := s.repos.Enrollments.Get(ctx, assignment.Category.ClassID, payload.StudentID); err != nil {
		return dto.SubmissionResponse{}, translateNotFound(err, ErrEnrollmentNotFound)
	}

	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    payload.StudentID,
		Score:        0,
		Contents:     payload.Contents,
		SubmittedAt:  s.now().UTC(),
	}
	if err := s.repos.Submissions.Upsert(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	response := newSubmissionResponse(submission, assignment)
	s.logger.Info().Uint("submission_id", submission.ID).Bool("late", response.Late).Msg("submission saved")

	return response, nil
}

// GradeSubmission updates the score and rewrites the student's class grade in one transaction.
func (s *gradebookService) GradeSubmission(ctx context.Context, assignmentID, studentID uint, payload dto.GradeSubmissionRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, translateNotFound(err, ErrAssignmentNotFound)
	}
	classID := assignment.Category.ClassID

	unlock := s.recalc.locks.Lock(classID)
	defer unlock()

	start := s.recalc.now()
	var submission models.Submission
	var result GradeResult
	err = s.repos.Transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		submission, err = s.repos.Submissions.GetByAssignmentAndStudent(txCtx, assignmentID, studentID)
		if err != nil {
			return translateNotFound(err, ErrSubmissionNotFound)
		}

		if err := s.repos.Submissions.UpdateScore(txCtx, submission.ID, payload.Score); err != nil {
			return err
		}
		submission.Score = payload.Score

		result, err = s.recalc.recalculateStudent(txCtx, classID, studentID)
		return err
	})
	if !errors.Is(err, ErrSubmissionNotFound) {
		s.recalc.observe(recalcScopeStudent, start, err)
	}
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.recalc.settle(ctx, result)
	s.logger.Info().Uint("submission_id", submission.ID).Float64("score", payload.Score).Msg("submission graded")

	response := newSubmissionResponse(submission, assignment)
	response.ClassGrade = result.LetterOrNil()
	return response, nil
}

func (s *gradebookService) ClassGrade(ctx context.Context, classID, studentID uint) (dto.ClassGradeResponse, error) {
	result, err := s.aggregator.Compute(ctx, classID, studentID)
	if err != nil {
		return dto.ClassGradeResponse{}, err
	}

	enrollment, err := s.repos.Enrollments.Get(ctx, classID, studentID)
	if err != nil {
		return dto.ClassGradeResponse{}, translateNotFound(err, ErrEnrollmentNotFound)
	}

	return NewClassGradeResponse(result, enrollment.Grade), nil
}

// AssignmentSubmissions lists every submission to the assignment with the submitting student.
func (s *gradebookService) AssignmentSubmissions(ctx context.Context, assignmentID uint) ([]dto.AssignmentSubmissionResponse, error) {
	assignment, err := s.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, translateNotFound(err, ErrAssignmentNotFound)
	}

	submissions, err := s.repos.Submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AssignmentSubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.AssignmentSubmissionResponse{
			StudentID:   submission.StudentID,
			UID:         submission.Student.UID,
			FirstName:   submission.Student.FirstName,
			LastName:    submission.Student.LastName,
			SubmittedAt: submission.SubmittedAt,
			Score:       submission.Score,
			Late:        assignment.IsPastDue(submission.SubmittedAt),
		})
	}

	return responses, nil
}

// ClassAssignments lists every assignment of the class in category order, with the student's
// score where a submission exists.
func (s *gradebookService) ClassAssignments(ctx context.Context, classID, studentID uint) ([]dto.StudentAssignmentResponse, error) {
	if _, err := s.repos.Classes.GetByID(ctx, classID); err != nil {
		return nil, translateNotFound(err, ErrClassNotFound)
	}
	if _, err := s.repos.Enrollments.Get(ctx, classID, studentID); err != nil {
		return nil, translateNotFound(err, ErrEnrollmentNotFound)
	}

	categories, err := s.repos.Gradebook.ListCategories(ctx, classID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.StudentAssignmentResponse, 0)
	for _, category := range categories {
		assignments, err := s.repos.Gradebook.ListAssignments(ctx, category.ID)
		if err != nil {
			return nil, err
		}

		for _, assignment := range assignments {
			item := dto.StudentAssignmentResponse{
				AssignmentID: assignment.ID,
				Name:         assignment.Name,
				Category:     category.Name,
				DueDate:      assignment.DueDate,
				MaxPoints:    assignment.MaxPoints,
			}

			submission, err := s.repos.Gradebook.GetSubmission(ctx, assignment.ID, studentID)
			switch {
			case err == nil:
				score := submission.Score
				submittedAt := submission.SubmittedAt
				item.Score = &score
				item.SubmittedAt = &submittedAt
				item.Late = assignment.IsPastDue(submittedAt)
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return nil, err
			}

			responses = append(responses, item)
		}
	}

	return responses, nil
}

// SubmissionText returns the stored submission, contents included.
func (s *gradebookService) SubmissionText(ctx context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error) {
	assignment, err := s.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, translateNotFound(err, ErrAssignmentNotFound)
	}

	submission, err := s.repos.Submissions.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		return dto.SubmissionResponse{}, translateNotFound(err, ErrSubmissionNotFound)
	}

	return newSubmissionResponse(submission, assignment), nil
}

func newSubmissionResponse(submission models.Submission, assignment models.Assignment) dto.SubmissionResponse {
	response := dto.NewSubmissionResponse(submission)
	response.Late = assignment.IsPastDue(submission.SubmittedAt)
	return response
}

// validateContents rejects blank and binary payloads. Accepted text is never rewritten: source
// code, markup and JSON answers must round-trip byte for byte.
func validateContents(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrInvalidContents
	}
	if !isTextContent([]byte(raw)) {
		return ErrInvalidContents
	}
	return nil
}

func isTextContent(data []byte) bool {
	for mime := mimetype.Detect(data); mime != nil; mime = mime.Parent() {
		if strings.HasPrefix(mime.String(), "text/") {
			return true
		}
	}
	return false
}

// NewClassGradeResponse converts an aggregation result into its API representation.
func NewClassGradeResponse(result GradeResult, stored *string) dto.ClassGradeResponse {
	response := dto.ClassGradeResponse{
		ClassID:     result.ClassID,
		StudentID:   result.StudentID,
		Graded:      result.Graded,
		Letter:      result.LetterOrNil(),
		StoredGrade: stored,
		Categories:  make([]dto.CategoryBreakdown, 0, len(result.Categories)),
	}
	if result.Graded {
		percentage := result.Percentage
		response.Percentage = &percentage
	}

	for _, category := range result.Categories {
		response.Categories = append(response.Categories, dto.CategoryBreakdown{
			CategoryID:  category.CategoryID,
			Name:        category.Name,
			Weight:      category.Weight,
			Assignments: category.Assignments,
			Earned:      category.Earned,
			MaxPoints:   category.MaxPoints,
			Percentage:  category.Percentage,
			Included:    category.Included,
		})
	}

	return response
}
