package handler_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/service"
)

func TestGradeStreamRequiresUpgrade(t *testing.T) {
	app := setupApp(&stubGradebook{}, &stubRecalc{})

	resp := doRequest(t, app, http.MethodGet, "/api/v1/ws/grades", "student", 3, nil)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func dialGradeStream(t *testing.T, app *fiber.App, role string, userID uint, query string) *websocket.Conn {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	header := http.Header{}
	header.Set("X-User-Role", role)
	header.Set("X-User-ID", fmt.Sprintf("%d", userID))

	url := fmt.Sprintf("ws://%s/api/v1/ws/grades%s", ln.Addr().String(), query)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// publishUntilDone keeps publishing until ctx ends; the handler subscribes only after the upgrade.
func publishUntilDone(ctx context.Context, stream service.GradeEventStream, event service.GradeEvent) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		_ = stream.PublishGradeUpdated(ctx, event)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func TestGradeStreamRelaysOwnGradeChanges(t *testing.T) {
	app, stream := setupAppWithStream(&stubGradebook{}, &stubRecalc{})
	conn := dialGradeStream(t, app, "student", 12, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	grade := "A-"
	go publishUntilDone(ctx, stream, service.GradeEvent{ClassID: 4, StudentID: 99, ChangedAt: time.Now().UTC()})
	go publishUntilDone(ctx, stream, service.GradeEvent{ClassID: 4, StudentID: 12, Grade: &grade, ChangedAt: time.Now().UTC()})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for i := 0; i < 3; i++ {
		var event service.GradeEvent
		require.NoError(t, conn.ReadJSON(&event))
		require.Equal(t, uint(12), event.StudentID)
		require.Equal(t, "A-", *event.Grade)
	}
}

func TestGradeStreamStaffChoosesStudent(t *testing.T) {
	app, stream := setupAppWithStream(&stubGradebook{}, &stubRecalc{})
	conn := dialGradeStream(t, app, "professor", 1, "?student_id=7")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go publishUntilDone(ctx, stream, service.GradeEvent{ClassID: 2, StudentID: 7, ChangedAt: time.Now().UTC()})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var event service.GradeEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, uint(7), event.StudentID)
	require.Nil(t, event.Grade)
}

func TestGradeStreamStaffWithoutStudentIsClosed(t *testing.T) {
	app, _ := setupAppWithStream(&stubGradebook{}, &stubRecalc{})
	conn := dialGradeStream(t, app, "professor", 1, "")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, 4000+fiber.StatusBadRequest), "unexpected error %v", err)
}
