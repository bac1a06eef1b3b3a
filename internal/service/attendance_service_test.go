package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/token"
	"github.com/rs/zerolog"
)

// Campus anchor used throughout. Offsets are chosen against the haversine
// distance: one degree of latitude is ~111.2km, so 0.0005° ≈ 55m.
const (
	anchorLat = 10.772000
	anchorLng = 106.658000

	nearLat = anchorLat + 0.0005 // ~55m north, inside a 200m fence
	farLat  = anchorLat + 0.0100 // ~1.1km north, outside

	lecturerID = 7
	classID    = 42
)

type testEnv struct {
	svc      *AttendanceService
	sessions *fakeSessionStore
	classes  *fakeClassStore
	notifier *recordingNotifier
	clock    *fakeClock
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	cfg := &config.Config{
		SessionTokenSecret:        "test-secret",
		SessionTTL:                60 * time.Second,
		DefaultGeofenceRadius:     200,
		DegradedAccuracyThreshold: 50,
		DegradedGeofenceRadius:    600,
	}

	sessions := newFakeSessionStore()
	classes := newFakeClassStore()
	classes.classes[classID] = &model.Class{
		ID:         classID,
		Code:       "CO1001",
		Name:       "Intro to Computing",
		LecturerID: lecturerID,
		Location:   &model.Location{Lat: anchorLat, Lng: anchorLng, Radius: 200},
		IsActive:   true,
	}
	classes.setRoster(classID, 101, 102, 103)

	notifier := &recordingNotifier{}
	signer := token.NewSigner(cfg.SessionTokenSecret, clock.Now)
	svc := NewAttendanceService(sessions, classes, signer, notifier, cfg, clock.Now, zerolog.Nop())

	return &testEnv{svc: svc, sessions: sessions, classes: classes, notifier: notifier, clock: clock, cfg: cfg}
}

func (e *testEnv) openSession(t *testing.T) *SessionIssue {
	t.Helper()
	issue, err := e.svc.CreateOrRefresh(context.Background(), classID, 10, 3, lecturerID)
	if err != nil {
		t.Fatalf("CreateOrRefresh: %v", err)
	}
	return issue
}

func (e *testEnv) checkIn(studentID int, sessionToken string, issue *SessionIssue, lat, lng float64) (*CheckInResult, error) {
	return e.svc.CheckIn(context.Background(), CheckInInput{
		SessionID: issue.SessionID,
		Token:     sessionToken,
		StudentID: studentID,
		Lat:       lat,
		Lng:       lng,
	})
}

// assertPartition checks the core list invariant: present and absent
// together cover exactly the expected set with no overlap, and the counts
// match the lists.
func assertPartition(t *testing.T, sess *model.AttendanceSession, want []int) {
	t.Helper()
	seen := make(map[int]bool)
	for _, p := range sess.Present {
		if seen[p.StudentID] {
			t.Fatalf("student %d appears twice in present", p.StudentID)
		}
		seen[p.StudentID] = true
	}
	for _, id := range sess.Absent {
		if seen[id] {
			t.Fatalf("student %d in both present and absent", id)
		}
		seen[id] = true
	}
	if len(seen) != len(want) {
		t.Fatalf("lists cover %d students, want %d", len(seen), len(want))
	}
	for _, id := range want {
		if !seen[id] {
			t.Fatalf("student %d missing from both lists", id)
		}
	}
	if sess.PresentCount != len(sess.Present) || sess.AbsentCount != len(sess.Absent) {
		t.Fatalf("counts (%d,%d) disagree with lists (%d,%d)",
			sess.PresentCount, sess.AbsentCount, len(sess.Present), len(sess.Absent))
	}
}

func TestCreateSessionSnapshotsRoster(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	if issue.Token == "" {
		t.Fatal("expected a session token")
	}
	if issue.AbsentCount != 3 || issue.PresentCount != 0 {
		t.Fatalf("counts = (%d,%d), want (0,3)", issue.PresentCount, issue.AbsentCount)
	}
	if want := env.clock.Now().Add(60 * time.Second); !issue.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", issue.ExpiresAt, want)
	}

	sess, err := env.sessions.GetByID(context.Background(), issue.SessionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	assertPartition(t, sess, []int{101, 102, 103})
}

func TestCreateOrRefreshReusesOpenSlot(t *testing.T) {
	env := newTestEnv(t)
	first := env.openSession(t)

	env.clock.Advance(30 * time.Second)
	second := env.openSession(t)

	if second.SessionID != first.SessionID {
		t.Fatal("open slot should refresh the existing session, not create a new one")
	}
	if second.Token == first.Token {
		t.Fatal("refresh must rotate the token")
	}

	all, _ := env.sessions.List(context.Background())
	if len(all) != 1 {
		t.Fatalf("have %d sessions for the slot, want 1", len(all))
	}
}

func TestCreateSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.CreateOrRefresh(ctx, classID, 0, 3, lecturerID); !errors.Is(err, ErrSlotInvalid) {
		t.Fatalf("week 0: got %v, want ErrSlotInvalid", err)
	}
	if _, err := env.svc.CreateOrRefresh(ctx, classID, 10, 3, lecturerID+1); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign lecturer: got %v, want ErrNotOwner", err)
	}
	if _, err := env.svc.CreateOrRefresh(ctx, 9999, 10, 3, lecturerID); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("missing class: got %v, want ErrClassNotFound", err)
	}

	env.classes.classes[classID].Location = nil
	if _, err := env.svc.CreateOrRefresh(ctx, classID, 10, 3, lecturerID); !errors.Is(err, ErrLocationNotConfigured) {
		t.Fatalf("no location: got %v, want ErrLocationNotConfigured", err)
	}
}

func TestCheckInHappyPath(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	res, err := env.checkIn(101, issue.Token, issue, nearLat, anchorLng)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if res.Outcome != OutcomePresent {
		t.Fatalf("outcome = %s, want PRESENT", res.Outcome)
	}
	if res.Distance <= 0 || res.Distance > 200 {
		t.Fatalf("distance = %.1f, want within (0,200]", res.Distance)
	}
	if res.PresentCount != 1 || res.AbsentCount != 2 {
		t.Fatalf("counts = (%d,%d), want (1,2)", res.PresentCount, res.AbsentCount)
	}

	sess, _ := env.sessions.GetByID(context.Background(), issue.SessionID)
	assertPartition(t, sess, []int{101, 102, 103})
	if !sess.HasPresent(101) {
		t.Fatal("student 101 should be present")
	}
	if got := sess.Present[0].CheckInTime; !got.Equal(env.clock.Now()) {
		t.Fatalf("check-in time = %v, want %v", got, env.clock.Now())
	}
}

func TestCheckInOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	res, err := env.checkIn(101, issue.Token, issue, farLat, anchorLng)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if res.Outcome != OutcomeOutOfRange {
		t.Fatalf("outcome = %s, want OUT_OF_RANGE", res.Outcome)
	}
	if res.Distance < 1000 || res.Distance > 1300 {
		t.Fatalf("distance = %.1f, want ~1100m", res.Distance)
	}

	// No mutation: the student stays absent and may retry.
	sess, _ := env.sessions.GetByID(context.Background(), issue.SessionID)
	if sess.HasPresent(101) {
		t.Fatal("out-of-range attempt must not mark the student present")
	}
	if len(env.notifier.outOfRange) != 1 {
		t.Fatalf("have %d out-of-range alerts, want 1", len(env.notifier.outOfRange))
	}
	if alert := env.notifier.outOfRange[0]; alert.StudentID != 101 || alert.Distance != res.Distance {
		t.Fatalf("alert = %+v, want student 101 at %.1fm", alert, res.Distance)
	}
}

func TestCheckInDegradedAccuracyWidensFence(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	// ~330m out: beyond the 200m fence but inside the degraded 600m one.
	midLat := anchorLat + 0.0030
	accuracy := 80.0

	res, err := env.svc.CheckIn(context.Background(), CheckInInput{
		SessionID: issue.SessionID,
		Token:     issue.Token,
		StudentID: 101,
		Lat:       midLat,
		Lng:       anchorLng,
		Accuracy:  &accuracy,
	})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if res.Outcome != OutcomePresent {
		t.Fatalf("degraded-accuracy fix at %.0fm should pass the widened fence, got %s", res.Distance, res.Outcome)
	}

	// The same spot with a sharp fix is rejected.
	sharp := 5.0
	res2, err := env.svc.CheckIn(context.Background(), CheckInInput{
		SessionID: issue.SessionID,
		Token:     issue.Token,
		StudentID: 102,
		Lat:       midLat,
		Lng:       anchorLng,
		Accuracy:  &sharp,
	})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if res2.Outcome != OutcomeOutOfRange {
		t.Fatalf("sharp fix at %.0fm should fail the 200m fence", res2.Distance)
	}
}

func TestCheckInRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidSessionToken},
		{"empty", "", ErrInvalidSessionToken},
		{"tampered", issue.Token + "x", ErrInvalidSessionToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.checkIn(101, tc.token, issue, nearLat, anchorLng)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCheckInAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	env.clock.Advance(61 * time.Second)

	if _, err := env.checkIn(101, issue.Token, issue, nearLat, anchorLng); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("got %v, want ErrSessionExpired", err)
	}
}

func TestRefreshRevokesOldToken(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)
	oldToken := issue.Token

	env.clock.Advance(10 * time.Second)
	refreshed, err := env.svc.Refresh(context.Background(), issue.SessionID, lecturerID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// The old token is cryptographically valid for another 50 seconds but
	// no longer matches the session's current token.
	if _, err := env.checkIn(101, oldToken, issue, nearLat, anchorLng); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("old token after refresh: got %v, want ErrInvalidSessionToken", err)
	}
	if res, err := env.checkIn(101, refreshed.Token, issue, nearLat, anchorLng); err != nil || res.Outcome != OutcomePresent {
		t.Fatalf("new token: res=%v err=%v", res, err)
	}
}

func TestCheckInNotEnrolled(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	if _, err := env.checkIn(999, issue.Token, issue, nearLat, anchorLng); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("got %v, want ErrNotEnrolled", err)
	}
}

func TestCheckInDuplicate(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	if _, err := env.checkIn(101, issue.Token, issue, nearLat, anchorLng); err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	if _, err := env.checkIn(101, issue.Token, issue, nearLat, anchorLng); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("second check-in: got %v, want ErrAlreadyCheckedIn", err)
	}

	sess, _ := env.sessions.GetByID(context.Background(), issue.SessionID)
	if sess.PresentCount != 1 {
		t.Fatalf("present count = %d after duplicate, want 1", sess.PresentCount)
	}
}

// Every student races the same session; the store's compare-and-swap plus
// the service's retry loop must let all of them land.
func TestConcurrentCheckInsLoseNoUpdates(t *testing.T) {
	env := newTestEnv(t)

	const n = 40
	roster := make([]int, n)
	for i := range roster {
		roster[i] = 1000 + i
	}
	env.classes.setRoster(classID, roster...)
	issue := env.openSession(t)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range roster {
		wg.Add(1)
		go func(studentID int) {
			defer wg.Done()
			// ErrUpdateConflict is a retryable condition for clients; loop
			// the way a real client would.
			for {
				res, err := env.checkIn(studentID, issue.Token, issue, nearLat, anchorLng)
				if errors.Is(err, ErrUpdateConflict) {
					continue
				}
				if err != nil {
					errs <- fmt.Errorf("student %d: %w", studentID, err)
				} else if res.Outcome != OutcomePresent {
					errs <- fmt.Errorf("student %d: outcome %s", studentID, res.Outcome)
				}
				return
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	sess, _ := env.sessions.GetByID(context.Background(), issue.SessionID)
	if sess.PresentCount != n {
		t.Fatalf("present count = %d, want %d", sess.PresentCount, n)
	}
	assertPartition(t, sess, roster)
}

func TestTerminate(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	if err := env.svc.Terminate(context.Background(), issue.SessionID, lecturerID); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	// Idempotent.
	if err := env.svc.Terminate(context.Background(), issue.SessionID, lecturerID); err != nil {
		t.Fatalf("second Terminate: %v", err)
	}

	if _, err := env.checkIn(101, issue.Token, issue, nearLat, anchorLng); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("check-in after terminate: got %v, want ErrSessionExpired", err)
	}

	if err := env.svc.Terminate(context.Background(), issue.SessionID, lecturerID+1); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign terminate: got %v, want ErrNotOwner", err)
	}
}

func TestManualOverride(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	// 101 checks in on their own; the override then keeps 101 and adds 103.
	if _, err := env.checkIn(101, issue.Token, issue, nearLat, anchorLng); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	originalCheckIn := env.clock.Now()
	env.clock.Advance(20 * time.Second)

	res, err := env.svc.ManualOverride(context.Background(), issue.SessionID, lecturerID, []int{101, 103})
	if err != nil {
		t.Fatalf("ManualOverride: %v", err)
	}
	if res.PresentCount != 2 || res.AbsentCount != 1 {
		t.Fatalf("counts = (%d,%d), want (2,1)", res.PresentCount, res.AbsentCount)
	}

	sess, _ := env.sessions.GetByID(context.Background(), issue.SessionID)
	assertPartition(t, sess, []int{101, 102, 103})
	for _, p := range sess.Present {
		switch p.StudentID {
		case 101:
			if !p.CheckInTime.Equal(originalCheckIn) {
				t.Fatalf("101's original check-in time was lost: %v", p.CheckInTime)
			}
		case 103:
			if !p.CheckInTime.Equal(env.clock.Now()) {
				t.Fatalf("103 should carry the override time, got %v", p.CheckInTime)
			}
		default:
			t.Fatalf("unexpected present student %d", p.StudentID)
		}
	}
}

func TestManualOverrideIgnoresNonRosterIDs(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	// 999 was never enrolled; 103 left the class after the session opened.
	env.classes.setRoster(classID, 101, 102)

	res, err := env.svc.ManualOverride(context.Background(), issue.SessionID, lecturerID, []int{101, 103, 999})
	if err != nil {
		t.Fatalf("ManualOverride: %v", err)
	}
	if res.PresentCount != 1 || res.AbsentCount != 1 {
		t.Fatalf("counts = (%d,%d), want (1,1)", res.PresentCount, res.AbsentCount)
	}

	sess, _ := env.sessions.GetByID(context.Background(), issue.SessionID)
	assertPartition(t, sess, []int{101, 102})
}

func TestManualOverrideOwnership(t *testing.T) {
	env := newTestEnv(t)
	issue := env.openSession(t)

	if _, err := env.svc.ManualOverride(context.Background(), issue.SessionID, lecturerID+1, []int{101}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("got %v, want ErrNotOwner", err)
	}
}
