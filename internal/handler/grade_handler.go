package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// GradeHandler exposes explicit recalculation and GPA endpoints.
type GradeHandler struct {
	recalc service.GradeRecalculationService
	gpa    service.GPAService
	logger zerolog.Logger
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(recalc service.GradeRecalculationService, gpa service.GPAService, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		recalc: recalc,
		gpa:    gpa,
		logger: logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register attaches grade endpoints to the router group.
func (h *GradeHandler) Register(router fiber.Router) {
	staff := middleware.RequireRole(roleProfessor, roleAdministrator)

	router.Post("/classes/:classId/grades/recalculate", staff, h.recalculateClass)
	router.Post("/classes/:classId/students/:studentId/grade/recalculate", staff, h.recalculateStudent)
	router.Get("/students/:studentId/gpa", h.gpaForStudent)
}

func (h *GradeHandler) recalculateClass(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.recalc.RecalculateAll(c.UserContext(), classID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to recalculate class grades")
	}

	grades := make([]dto.ClassGradeResponse, 0, len(results))
	for _, result := range results {
		grades = append(grades, service.NewClassGradeResponse(result, result.LetterOrNil()))
	}

	return utils.SendSuccess(c, "class grades recalculated", grades)
}

func (h *GradeHandler) recalculateStudent(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.recalc.Recalculate(c.UserContext(), classID, studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to recalculate grade")
	}

	return utils.SendSuccess(c, "grade recalculated", service.NewClassGradeResponse(result, result.LetterOrNil()))
}

func (h *GradeHandler) gpaForStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if !canViewStudent(c, studentID) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	gpa, err := h.gpa.ComputeGPA(c.UserContext(), studentID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to compute gpa")
	}

	return utils.SendSuccess(c, "gpa computed", dto.GPAResponse{StudentID: studentID, GPA: gpa})
}
