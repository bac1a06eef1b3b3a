package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/middleware"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
	"github.com/hcmut-dev/rollcall-backend/internal/token"
	wsproto "github.com/hcmut-dev/rollcall-backend/internal/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// stubSessionStore serves a single session by ID. Only GetByID is exercised
// by the monitor stream; the remaining methods satisfy the interface.
type stubSessionStore struct {
	sess *model.AttendanceSession
}

func (s *stubSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.AttendanceSession, error) {
	if s.sess != nil && s.sess.ID == id {
		cp := *s.sess
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubSessionStore) FindOpenSlot(context.Context, int, int, int, time.Time) (*model.AttendanceSession, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubSessionStore) Create(context.Context, *model.AttendanceSession) error { return nil }

func (s *stubSessionStore) UpdateCAS(context.Context, *model.AttendanceSession) (bool, error) {
	return true, nil
}

func (s *stubSessionStore) List(context.Context) ([]model.AttendanceSession, error) {
	return nil, nil
}

func (s *stubSessionStore) ListByLecturer(context.Context, int, *int) ([]model.AttendanceSession, error) {
	return nil, nil
}

func (s *stubSessionStore) DeleteOrphans(context.Context) (int64, error) { return 0, nil }

type stubClassStore struct{}

func (stubClassStore) GetByID(context.Context, int) (*model.Class, error) { return nil, pgx.ErrNoRows }
func (stubClassStore) ActiveRoster(context.Context, int) ([]int, error)  { return nil, nil }
func (stubClassStore) ActiveRostersByClass(context.Context) (map[int][]int, error) {
	return nil, nil
}

// newMonitorServer wires the WS handler behind a test server with the given
// claims injected, the way RequireWSAuth would. The redis client points at a
// closed port, so the pub/sub feed stays silent and every frame the client
// receives comes from the handler's own loop.
func newMonitorServer(t *testing.T, sess *model.AttendanceSession, claimsUserID int) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		SessionTokenSecret:        "monitor-test-secret",
		SessionTTL:                time.Minute,
		DefaultGeofenceRadius:     200,
		DegradedAccuracyThreshold: 50,
		DegradedGeofenceRadius:    600,
	}
	signer := token.NewSigner(cfg.SessionTokenSecret, time.Now)
	svc := service.NewAttendanceService(&stubSessionStore{sess: sess}, stubClassStore{}, signer, nil, cfg, time.Now, zerolog.Nop())
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { rdb.Close() })

	h := NewWSHandler(rdb, svc, zerolog.Nop(), nil)

	r := gin.New()
	r.GET("/stream/:id", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: claimsUserID, Role: model.RoleLecturer})
	}, h.SessionMonitorStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/" + sess.ID.String()
}

func monitorSession(lecturerID int) *model.AttendanceSession {
	classID := 42
	return &model.AttendanceSession{
		ID:          uuid.New(),
		ClassID:     &classID,
		LecturerID:  lecturerID,
		Week:        10,
		Lesson:      3,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Minute),
		AbsentCount: 3,
		Version:     1,
	}
}

func TestSessionMonitorSnapshotAndPong(t *testing.T) {
	const lecturerID = 7
	sess := monitorSession(lecturerID)
	url := newMonitorServer(t, sess, lecturerID)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer resp.Body.Close()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap wsproto.SnapshotResponse
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Event != wsproto.EventSnapshot {
		t.Fatalf("expected snapshot first, got %q", snap.Event)
	}
	if snap.SessionID != sess.ID.String() || snap.AbsentCount != 3 {
		t.Errorf("snapshot mismatch: %+v", snap)
	}
	if snap.Status != string(model.SessionStatusOpen) {
		t.Errorf("expected OPEN status, got %q", snap.Status)
	}

	// Each ping must be answered with a pong, and the connection must stay
	// healthy across repeated round-trips. The pong is written from the
	// same loop as update frames, so a streaming session cannot race it.
	for i := 0; i < 5; i++ {
		if err := conn.WriteJSON(wsproto.RequestEnvelope{Action: wsproto.ActionPing}); err != nil {
			t.Fatalf("ping %d: %v", i, err)
		}
		var pong wsproto.PongResponse
		if err := conn.ReadJSON(&pong); err != nil {
			t.Fatalf("read pong %d: %v", i, err)
		}
		if pong.Event != wsproto.EventPong {
			t.Fatalf("ping %d: expected pong, got %q", i, pong.Event)
		}
	}
}

func TestSessionMonitorRejectsForeignLecturer(t *testing.T) {
	sess := monitorSession(7)
	url := newMonitorServer(t, sess, 99)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake rejection for foreign lecturer")
	}
	if resp == nil {
		t.Fatalf("no HTTP response: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 before upgrade, got %d", resp.StatusCode)
	}
}
