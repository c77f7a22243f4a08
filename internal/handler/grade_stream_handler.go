package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

const gradeStreamPingInterval = 30 * time.Second

// Close codes in the application range (4000-4999), offset by the matching HTTP status.
const (
	closeBadRequest   = 4000 + fiber.StatusBadRequest
	closeUnauthorized = 4000 + fiber.StatusUnauthorized
)

// GradeStreamHandler pushes recalculated grades to connected clients over a websocket.
type GradeStreamHandler struct {
	stream service.GradeEventStream
	logger zerolog.Logger
}

// NewGradeStreamHandler creates a grade stream handler instance.
func NewGradeStreamHandler(stream service.GradeEventStream, logger zerolog.Logger) *GradeStreamHandler {
	return &GradeStreamHandler{
		stream: stream,
		logger: logger.With().Str("component", "grade_stream_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group. Students receive their own
// grade changes; staff pick a student with ?student_id=.
func (h *GradeStreamHandler) Register(router fiber.Router) {
	router.Use("/ws/grades", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("correlation_id", middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws/grades", websocket.New(h.handleConnection))
}

func (h *GradeStreamHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == 0 {
		closeWebsocket(conn, closeUnauthorized, "user id missing")
		return
	}

	studentID := userID
	if middleware.CanonicalRole(conn.Locals("user_role")) != roleStudent {
		parsed, err := strconv.ParseUint(conn.Query("student_id"), 10, 64)
		if err != nil || parsed == 0 {
			closeWebsocket(conn, closeBadRequest, "student_id required")
			return
		}
		studentID = uint(parsed)
	}

	events, cleanup := h.stream.Subscribe(studentID)
	defer cleanup()

	logger := h.logger.With().Uint("user_id", userID).Uint("student_id", studentID).Logger()
	logger.Info().Msg("grade stream connected")
	defer logger.Info().Msg("grade stream disconnected")

	// the read loop only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(gradeStreamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Warn().Err(err).Msg("failed to write grade event")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func closeWebsocket(conn *websocket.Conn, status int, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(status, reason))
	_ = conn.Close()
}

func websocketUserID(conn *websocket.Conn) uint {
	switch v := conn.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}
