package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// GradebookHandler exposes enrollment, category, assignment and submission endpoints.
type GradebookHandler struct {
	service service.GradebookService
	logger  zerolog.Logger
}

// NewGradebookHandler builds a gradebook handler instance.
func NewGradebookHandler(service service.GradebookService, logger zerolog.Logger) *GradebookHandler {
	return &GradebookHandler{
		service: service,
		logger:  logger.With().Str("component", "gradebook_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradebookHandler) Register(router fiber.Router) {
	staff := middleware.RequireRole(roleProfessor, roleAdministrator)
	students := middleware.RequireRole(roleStudent)

	router.Post("/classes/:classId/enrollments", students, h.enroll)
	router.Post("/classes/:classId/categories", staff, h.createCategory)
	router.Post("/categories/:categoryId/assignments", staff, h.createAssignment)
	router.Put("/assignments/:assignmentId/submissions", students, middleware.RateLimit("submissions", 30, time.Minute), h.submit)
	router.Get("/assignments/:assignmentId/submissions", staff, h.listSubmissions)
	router.Get("/assignments/:assignmentId/submissions/:studentId", h.submissionText)
	router.Patch("/assignments/:assignmentId/submissions/:studentId/score", staff, h.grade)
	router.Get("/classes/:classId/students/:studentId/grade", h.classGrade)
	router.Get("/classes/:classId/students/:studentId/assignments", h.classAssignments)
	router.Get("/students/:studentId/enrollments", h.listEnrollments)
}

func (h *GradebookHandler) enroll(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "student identity missing")
	}

	enrollment, err := h.service.Enroll(c.UserContext(), classID, studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to enroll student")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student enrolled", enrollment)
}

func (h *GradebookHandler) createCategory(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CategoryCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	category, err := h.service.CreateCategory(c.UserContext(), classID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create category")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment category created", category)
}

func (h *GradebookHandler) createAssignment(c *fiber.Ctx) error {
	categoryID, err := parseUintParam(c, "categoryId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.CreateAssignment(c.UserContext(), categoryID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create assignment")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *GradebookHandler) submit(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	// students always submit as themselves
	if userID := userIDFromContext(c); userID != 0 {
		payload.StudentID = userID
	}

	submission, err := h.service.Submit(c.UserContext(), assignmentID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to submit assignment")
	}

	return utils.SendSuccess(c, "submission saved", submission)
}

func (h *GradebookHandler) grade(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.GradeSubmission(c.UserContext(), assignmentID, studentID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to grade submission")
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *GradebookHandler) classGrade(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if !canViewStudent(c, studentID) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	grade, err := h.service.ClassGrade(c.UserContext(), classID, studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to compute class grade")
	}

	return utils.SendSuccess(c, "class grade computed", grade)
}

func (h *GradebookHandler) listEnrollments(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if !canViewStudent(c, studentID) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	enrollments, err := h.service.ListEnrollments(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list enrollments")
	}

	return utils.SendSuccess(c, "enrollments retrieved", enrollments)
}

func (h *GradebookHandler) listSubmissions(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.AssignmentSubmissions(c.UserContext(), assignmentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *GradebookHandler) submissionText(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if !canViewStudent(c, studentID) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	submission, err := h.service.SubmissionText(c.UserContext(), assignmentID, studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *GradebookHandler) classAssignments(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if !canViewStudent(c, studentID) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	assignments, err := h.service.ClassAssignments(c.UserContext(), classID, studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list class assignments")
	}

	return utils.SendSuccess(c, "class assignments retrieved", assignments)
}
