package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

type stubGradebook struct {
	err           error
	lastSubmitter uint
	lastScore     float64
}

func (s *stubGradebook) Enroll(_ context.Context, classID, studentID uint) (dto.EnrollmentResponse, error) {
	if s.err != nil {
		return dto.EnrollmentResponse{}, s.err
	}
	return dto.EnrollmentResponse{ClassID: classID, StudentID: studentID, DisplayGrade: dto.UngradedPlaceholder}, nil
}

func (s *stubGradebook) ListEnrollments(_ context.Context, studentID uint) ([]dto.EnrollmentResponse, error) {
	grade := "A"
	return []dto.EnrollmentResponse{{ClassID: 1, StudentID: studentID, Grade: &grade, DisplayGrade: grade}}, s.err
}

func (s *stubGradebook) CreateCategory(_ context.Context, classID uint, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error) {
	if s.err != nil {
		return dto.CategoryResponse{}, s.err
	}
	return dto.CategoryResponse{ID: 3, ClassID: classID, Name: payload.Name, Weight: payload.Weight}, nil
}

func (s *stubGradebook) CreateAssignment(_ context.Context, categoryID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if s.err != nil {
		return dto.AssignmentResponse{}, s.err
	}
	return dto.AssignmentResponse{ID: 4, CategoryID: categoryID, Name: payload.Name, MaxPoints: payload.MaxPoints, RecalculatedFor: 2}, nil
}

func (s *stubGradebook) Submit(_ context.Context, assignmentID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	s.lastSubmitter = payload.StudentID
	if s.err != nil {
		return dto.SubmissionResponse{}, s.err
	}
	return dto.SubmissionResponse{ID: 5, AssignmentID: assignmentID, StudentID: payload.StudentID, Contents: payload.Contents}, nil
}

func (s *stubGradebook) GradeSubmission(_ context.Context, assignmentID, studentID uint, payload dto.GradeSubmissionRequest) (dto.SubmissionResponse, error) {
	s.lastScore = payload.Score
	if s.err != nil {
		return dto.SubmissionResponse{}, s.err
	}
	grade := "B"
	return dto.SubmissionResponse{ID: 5, AssignmentID: assignmentID, StudentID: studentID, Score: payload.Score, ClassGrade: &grade}, nil
}

func (s *stubGradebook) ClassGrade(_ context.Context, classID, studentID uint) (dto.ClassGradeResponse, error) {
	if s.err != nil {
		return dto.ClassGradeResponse{}, s.err
	}
	return dto.ClassGradeResponse{ClassID: classID, StudentID: studentID}, nil
}

func (s *stubGradebook) AssignmentSubmissions(_ context.Context, assignmentID uint) ([]dto.AssignmentSubmissionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []dto.AssignmentSubmissionResponse{{StudentID: 12, UID: "u0000012", Score: 7, Late: true}}, nil
}

func (s *stubGradebook) ClassAssignments(_ context.Context, classID, studentID uint) ([]dto.StudentAssignmentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	score := 3.0
	return []dto.StudentAssignmentResponse{
		{AssignmentID: 1, Name: "Quiz", Category: "Homework", Score: &score},
		{AssignmentID: 2, Name: "Final", Category: "Exams"},
	}, nil
}

func (s *stubGradebook) SubmissionText(_ context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error) {
	if s.err != nil {
		return dto.SubmissionResponse{}, s.err
	}
	return dto.SubmissionResponse{AssignmentID: assignmentID, StudentID: studentID, Contents: "#include <stdio.h>"}, nil
}

type stubRecalc struct {
	err error
}

func (s *stubRecalc) Recalculate(_ context.Context, classID, studentID uint) (service.GradeResult, error) {
	return service.GradeResult{ClassID: classID, StudentID: studentID, Graded: true, Percentage: 91, Letter: "A-"}, s.err
}

func (s *stubRecalc) RecalculateAll(_ context.Context, classID uint) ([]service.GradeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []service.GradeResult{
		{ClassID: classID, StudentID: 1, Graded: true, Percentage: 95, Letter: "A"},
		{ClassID: classID, StudentID: 2},
	}, nil
}

type stubGPA struct{}

func (stubGPA) ComputeGPA(_ context.Context, studentID uint) (float64, error) {
	if studentID == 404 {
		return 0, service.ErrStudentNotFound
	}
	return 3.5, nil
}

func (stubGPA) InvalidateGPA(context.Context, uint) error { return nil }

// fakeAuth trusts X-User-ID and X-User-Role in place of a signed token.
func fakeAuth(c *fiber.Ctx) error {
	if id, err := strconv.ParseUint(c.Get("X-User-ID"), 10, 64); err == nil {
		c.Locals("user_id", uint(id))
	}
	if role := c.Get("X-User-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func setupApp(gradebook *stubGradebook, recalc *stubRecalc) *fiber.App {
	app, _ := setupAppWithStream(gradebook, recalc)
	return app
}

func setupAppWithStream(gradebook *stubGradebook, recalc *stubRecalc) (*fiber.App, service.GradeEventStream) {
	logger := zerolog.New(io.Discard)
	stream := service.NewGradeEventStream(nil, nil, nil, "", logger)
	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test", GradingFloorLetter: "E"}, router.Dependencies{
		GradebookHandler: handler.NewGradebookHandler(gradebook, logger),
		GradeHandler:     handler.NewGradeHandler(recalc, stubGPA{}, logger),
		StreamHandler:    handler.NewGradeStreamHandler(stream, logger),
		JWTMiddleware:    fakeAuth,
	})
	return app, stream
}

func doRequest(t *testing.T, app *fiber.App, method, path, role string, userID uint, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()

	envelope := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	if target != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, target))
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/health", "", 0, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload handler.HealthResponse
	decodeResponse(t, resp, &payload)
	require.Equal(t, "ok", payload.Status)
	require.Equal(t, "E", payload.FloorLetter)
}

func TestCreateCategoryRequiresProfessor(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})
	body := dto.CategoryCreateRequest{Name: "Labs", Weight: 20}

	resp := doRequest(t, app, http.MethodPost, "/api/v1/classes/1/categories", "student", 3, body)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/api/v1/classes/1/categories", "professor", 9, body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var category dto.CategoryResponse
	decodeResponse(t, resp, &category)
	require.Equal(t, uint(1), category.ClassID)
	require.Equal(t, "Labs", category.Name)
}

func TestSubmitUsesAuthenticatedStudent(t *testing.T) {
	gradebook := &stubGradebook{}
	app := setupApp(gradebook, &stubRecalc{})

	resp := doRequest(t, app, http.MethodPut, "/api/v1/assignments/8/submissions", "student", 12, dto.SubmissionRequest{StudentID: 99, Contents: "done"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(12), gradebook.lastSubmitter)
}

func TestGradeSubmissionReturnsClassGrade(t *testing.T) {
	gradebook := &stubGradebook{}
	app := setupApp(gradebook, &stubRecalc{})

	resp := doRequest(t, app, http.MethodPatch, "/api/v1/assignments/8/submissions/12/score", "professor", 1, dto.GradeSubmissionRequest{Score: 42})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var submission dto.SubmissionResponse
	decodeResponse(t, resp, &submission)
	require.Equal(t, 42.0, gradebook.lastScore)
	require.Equal(t, "B", *submission.ClassGrade)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	validationErr := validator.New().Var("", "required")

	cases := []struct {
		err    error
		status int
	}{
		{service.ErrAssignmentNotFound, fiber.StatusNotFound},
		{service.ErrEnrollmentNotFound, fiber.StatusNotFound},
		{service.ErrInvalidContents, fiber.StatusBadRequest},
		{validationErr, fiber.StatusBadRequest},
		{service.ErrAlreadyEnrolled, fiber.StatusConflict},
		{fmt.Errorf("%w: write failed", service.ErrGradePersistence), fiber.StatusInternalServerError},
		{fmt.Errorf("unexpected"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		app := setupApp(&stubGradebook{err: tc.err}, &stubRecalc{})
		resp := doRequest(t, app, http.MethodPut, "/api/v1/assignments/8/submissions", "student", 12, dto.SubmissionRequest{Contents: "done"})
		require.Equal(t, tc.status, resp.StatusCode, "error %v", tc.err)
	}
}

func TestInvalidPathParameter(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/classes/abc/students/1/grade", "professor", 1, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStudentsOnlySeeTheirOwnGrades(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/classes/1/students/2/grade", "student", 3, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/classes/1/students/3/grade", "student", 3, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/students/3/enrollments", "student", 3, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var enrollments []dto.EnrollmentResponse
	decodeResponse(t, resp, &enrollments)
	require.Len(t, enrollments, 1)
}

func TestRecalculateClassEndpoint(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodPost, "/api/v1/classes/6/grades/recalculate", "administrator", 1, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var grades []dto.ClassGradeResponse
	decodeResponse(t, resp, &grades)
	require.Len(t, grades, 2)
	require.Equal(t, "A", *grades[0].Letter)
	require.Nil(t, grades[1].Letter)

	app = setupApp(&stubGradebook{}, &stubRecalc{err: service.ErrClassNotFound})
	resp = doRequest(t, app, http.MethodPost, "/api/v1/classes/6/grades/recalculate", "professor", 1, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGPAEndpoint(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/students/7/gpa", "professor", 1, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var gpa dto.GPAResponse
	decodeResponse(t, resp, &gpa)
	require.Equal(t, uint(7), gpa.StudentID)
	require.Equal(t, 3.5, gpa.GPA)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/students/404/gpa", "professor", 1, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListSubmissionsRequiresStaff(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/assignments/8/submissions", "student", 12, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/assignments/8/submissions", "professor", 1, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rows []dto.AssignmentSubmissionResponse
	decodeResponse(t, resp, &rows)
	require.Len(t, rows, 1)
	require.Equal(t, "u0000012", rows[0].UID)
	require.True(t, rows[0].Late)
}

func TestSubmissionTextIsSelfOrStaff(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/assignments/8/submissions/12", "student", 13, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/assignments/8/submissions/12", "student", 12, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var submission dto.SubmissionResponse
	decodeResponse(t, resp, &submission)
	require.Equal(t, "#include <stdio.h>", submission.Contents)

	app = setupApp(&stubGradebook{err: service.ErrSubmissionNotFound}, &stubRecalc{})
	resp = doRequest(t, app, http.MethodGet, "/api/v1/assignments/8/submissions/12", "professor", 1, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestClassAssignmentsForStudent(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/classes/1/students/4/assignments", "student", 3, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/classes/1/students/3/assignments", "student", 3, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var items []dto.StudentAssignmentResponse
	decodeResponse(t, resp, &items)
	require.Len(t, items, 2)
	require.Equal(t, 3.0, *items[0].Score)
	require.Nil(t, items[1].Score)
}
