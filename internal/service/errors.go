package service

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every lookup failure on a caller-supplied reference.
var ErrNotFound = errors.New("not found")

var (
	// ErrClassNotFound indicates the class offering does not exist.
	ErrClassNotFound = fmt.Errorf("class %w", ErrNotFound)
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = fmt.Errorf("student %w", ErrNotFound)
	// ErrCategoryNotFound indicates the assignment category does not exist.
	ErrCategoryNotFound = fmt.Errorf("assignment category %w", ErrNotFound)
	// ErrAssignmentNotFound indicates the assignment does not exist.
	ErrAssignmentNotFound = fmt.Errorf("assignment %w", ErrNotFound)
	// ErrSubmissionNotFound indicates the student has no submission for the assignment.
	ErrSubmissionNotFound = fmt.Errorf("submission %w", ErrNotFound)
	// ErrEnrollmentNotFound indicates the student is not enrolled in the class.
	ErrEnrollmentNotFound = fmt.Errorf("enrollment %w", ErrNotFound)
)

// ErrGradePersistence indicates a recomputed grade could not be written. The triggering operation is
// rolled back when this is returned.
var ErrGradePersistence = errors.New("failed to persist enrollment grade")

// ErrCategoryExists indicates a category with the same name already exists in the class.
var ErrCategoryExists = errors.New("assignment category already exists")

// ErrAssignmentExists indicates an assignment with the same name already exists in the category.
var ErrAssignmentExists = errors.New("assignment already exists")

// ErrAlreadyEnrolled indicates the student is already enrolled in the class.
var ErrAlreadyEnrolled = errors.New("student already enrolled")

// ErrInvalidContents indicates submission contents are empty or not text.
var ErrInvalidContents = errors.New("submission contents must be non-empty text")
