package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/geo"
	"github.com/hcmut-dev/rollcall-backend/internal/metrics"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/token"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// casMaxRetries bounds the optimistic-lock retry loop on session mutations.
// Conflicts are only expected when many students hit the same session at
// once; five reloads is far beyond what that produces in practice.
const casMaxRetries = 5

// AttendanceService is the session and check-in engine: token issuance and
// refresh, geofenced check-in validation, manual override and termination.
// All session mutations go through the store's compare-and-swap, so two
// concurrent check-ins can never lose an update to the shared lists.
type AttendanceService struct {
	sessions SessionStore
	classes  ClassStore
	signer   *token.Signer
	notifier Notifier
	cfg      *config.Config
	now      func() time.Time
	log      zerolog.Logger
}

// NewAttendanceService creates an AttendanceService. A nil now func
// defaults to time.Now; pass the same clock the token signer uses.
func NewAttendanceService(
	sessions SessionStore,
	classes ClassStore,
	signer *token.Signer,
	notifier Notifier,
	cfg *config.Config,
	now func() time.Time,
	log zerolog.Logger,
) *AttendanceService {
	if now == nil {
		now = time.Now
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AttendanceService{
		sessions: sessions,
		classes:  classes,
		signer:   signer,
		notifier: notifier,
		cfg:      cfg,
		now:      now,
		log:      log.With().Str("component", "attendance_service").Logger(),
	}
}

// SessionIssue is returned when a session is created or refreshed.
type SessionIssue struct {
	SessionID    uuid.UUID `json:"session_id"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	PresentCount int       `json:"present_count"`
	AbsentCount  int       `json:"absent_count"`
}

// CheckInOutcome is the business result of a geofence evaluation.
type CheckInOutcome string

const (
	OutcomePresent    CheckInOutcome = "PRESENT"
	OutcomeOutOfRange CheckInOutcome = "OUT_OF_RANGE"
)

// CheckInInput is one validated-and-discarded check-in attempt.
type CheckInInput struct {
	SessionID uuid.UUID
	Token     string
	StudentID int
	Lat       float64
	Lng       float64
	Accuracy  *float64
	Device    model.DeviceInfo
}

// CheckInResult reports the outcome of a check-in attempt. Distance is
// always filled so an out-of-range caller can be told how far away they were.
type CheckInResult struct {
	Outcome      CheckInOutcome `json:"outcome"`
	Distance     float64        `json:"distance_m"`
	PresentCount int            `json:"present_count"`
	AbsentCount  int            `json:"absent_count"`
}

// OverrideResult reports the counts after a manual override.
type OverrideResult struct {
	PresentCount int `json:"present_count"`
	AbsentCount  int `json:"absent_count"`
}

// ─── Session lifecycle ──────────────────────────────────────────────

// CreateOrRefresh opens the attendance window for a (class, week, lesson)
// slot. If an open window already exists for the slot it is refreshed in
// place — same session, new token and expiry — instead of duplicated.
// A new session snapshots the active roster into the absent list.
func (s *AttendanceService) CreateOrRefresh(ctx context.Context, classID, week, lesson, lecturerID int) (*SessionIssue, error) {
	if week < 1 || week > 53 || lesson < 1 || lesson > 20 {
		return nil, ErrSlotInvalid
	}

	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	if class.LecturerID != lecturerID {
		return nil, ErrNotOwner
	}
	if class.Location == nil {
		return nil, ErrLocationNotConfigured
	}

	now := s.now()

	existing, err := s.sessions.FindOpenSlot(ctx, classID, week, lesson, now)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find open slot: %w", err)
	}
	if existing != nil {
		return s.refreshSession(ctx, existing)
	}

	roster, err := s.classes.ActiveRoster(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	location := *class.Location
	if location.Radius <= 0 {
		location.Radius = s.cfg.DefaultGeofenceRadius
	}

	sess := &model.AttendanceSession{
		ID:          uuid.New(),
		ClassID:     &classID,
		LecturerID:  lecturerID,
		Week:        week,
		Lesson:      lesson,
		Location:    location,
		CreatedAt:   now,
		Present:     []model.PresentEntry{},
		Absent:      append([]int{}, roster...),
		AbsentCount: len(roster),
	}
	sess.Token, sess.ExpiresAt = s.signer.Issue(sess.ID.String(), classID, lecturerID, s.cfg.SessionTTL)

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionsOpened.Inc()
	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int("class_id", classID).
		Int("week", week).
		Int("lesson", lesson).
		Int("roster_size", len(roster)).
		Msg("attendance session opened")

	return issueOf(sess), nil
}

// Refresh extends an open session's expiry and reissues its token. The
// previous token stops verifying immediately because check-ins compare the
// presented token against the session's current one.
func (s *AttendanceService) Refresh(ctx context.Context, sessionID uuid.UUID, lecturerID int) (*SessionIssue, error) {
	sess, err := s.getOwned(ctx, sessionID, lecturerID)
	if err != nil {
		return nil, err
	}
	if sess.Terminated {
		return nil, ErrSessionExpired
	}
	return s.refreshSession(ctx, sess)
}

func (s *AttendanceService) refreshSession(ctx context.Context, sess *model.AttendanceSession) (*SessionIssue, error) {
	classID := 0
	if sess.ClassID != nil {
		classID = *sess.ClassID
	}

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		sess.Token, sess.ExpiresAt = s.signer.Issue(sess.ID.String(), classID, sess.LecturerID, s.cfg.SessionTTL)

		ok, err := s.sessions.UpdateCAS(ctx, sess)
		if err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}
		if ok {
			metrics.SessionsOpened.Inc()
			s.notifier.SessionEvent(ctx, SessionEvent{
				Type:         EventRefresh,
				SessionID:    sess.ID.String(),
				PresentCount: sess.PresentCount,
				AbsentCount:  sess.AbsentCount,
				At:           s.now(),
			})
			return issueOf(sess), nil
		}

		metrics.CASConflicts.Inc()
		if sess, err = s.reload(ctx, sess.ID); err != nil {
			return nil, err
		}
		if sess.Terminated {
			return nil, ErrSessionExpired
		}
	}
	return nil, ErrUpdateConflict
}

// Terminate ends a session now. Idempotent; only the issuer may call it.
func (s *AttendanceService) Terminate(ctx context.Context, sessionID uuid.UUID, lecturerID int) error {
	for attempt := 0; attempt < casMaxRetries; attempt++ {
		sess, err := s.getOwned(ctx, sessionID, lecturerID)
		if err != nil {
			return err
		}
		if sess.Terminated {
			return nil
		}

		sess.Terminated = true
		sess.ExpiresAt = s.now()

		ok, err := s.sessions.UpdateCAS(ctx, sess)
		if err != nil {
			return fmt.Errorf("terminate session: %w", err)
		}
		if ok {
			s.notifier.SessionEvent(ctx, SessionEvent{
				Type:         EventTerminate,
				SessionID:    sess.ID.String(),
				PresentCount: sess.PresentCount,
				AbsentCount:  sess.AbsentCount,
				At:           s.now(),
			})
			s.log.Info().Str("session_id", sessionID.String()).Msg("attendance session terminated")
			return nil
		}
		metrics.CASConflicts.Inc()
	}
	return ErrUpdateConflict
}

// ─── Check-in ───────────────────────────────────────────────────────

// CheckIn validates one proof-of-presence attempt and, on success,
// atomically moves the student from absent to present. Validation order:
// token, location configured, enrollment, duplicate, geofence. The first
// failure wins. OUT_OF_RANGE is a result, not an error — it carries the
// computed distance and triggers a fire-and-forget alert.
func (s *AttendanceService) CheckIn(ctx context.Context, in CheckInInput) (*CheckInResult, error) {
	for attempt := 0; attempt < casMaxRetries; attempt++ {
		sess, err := s.reload(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}

		result, mutated, err := s.evaluateCheckIn(ctx, sess, in)
		if err != nil || !mutated {
			return result, err
		}

		ok, err := s.sessions.UpdateCAS(ctx, sess)
		if err != nil {
			return nil, fmt.Errorf("persist check-in: %w", err)
		}
		if ok {
			metrics.CheckInsTotal.WithLabelValues("present").Inc()
			s.notifier.SessionEvent(ctx, SessionEvent{
				Type:         EventCheckIn,
				SessionID:    sess.ID.String(),
				StudentID:    in.StudentID,
				PresentCount: sess.PresentCount,
				AbsentCount:  sess.AbsentCount,
				At:           s.now(),
			})
			return result, nil
		}

		// Lost the race against a concurrent check-in: reload and revalidate.
		metrics.CASConflicts.Inc()
	}

	metrics.CheckInsTotal.WithLabelValues("conflict").Inc()
	return nil, ErrUpdateConflict
}

// evaluateCheckIn runs the validation pipeline against a freshly loaded
// session. It mutates sess only when the attempt is accepted (mutated true
// and the caller must persist).
func (s *AttendanceService) evaluateCheckIn(ctx context.Context, sess *model.AttendanceSession, in CheckInInput) (*CheckInResult, bool, error) {
	now := s.now()

	// 1. Token: signature and embedded expiry first, then binding to this
	// session's current token so a refresh revokes older tokens, then the
	// authoritative expiry field.
	payload, err := s.signer.Verify(in.Token)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, false, s.rejected(ErrSessionExpired)
		}
		return nil, false, s.rejected(ErrInvalidSessionToken)
	}
	if payload.SessionID != sess.ID.String() || in.Token != sess.Token {
		return nil, false, s.rejected(ErrInvalidSessionToken)
	}
	if !sess.IsOpen(now) {
		return nil, false, s.rejected(ErrSessionExpired)
	}

	// 2. The class must still exist and still have a configured location.
	if sess.ClassID == nil {
		return nil, false, s.rejected(ErrClassNotFound)
	}
	class, err := s.classes.GetByID(ctx, *sess.ClassID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, s.rejected(ErrClassNotFound)
		}
		return nil, false, fmt.Errorf("get class: %w", err)
	}
	if class.Location == nil {
		return nil, false, s.rejected(ErrLocationNotConfigured)
	}

	// 3. Membership against the current active roster, not the snapshot.
	roster, err := s.classes.ActiveRoster(ctx, *sess.ClassID)
	if err != nil {
		return nil, false, fmt.Errorf("load roster: %w", err)
	}
	if !containsInt(roster, in.StudentID) {
		return nil, false, s.rejected(ErrNotEnrolled)
	}

	// 4. Duplicate check-in. Client retries are expected, so this is a
	// calm business failure rather than an alarming one.
	if sess.HasPresent(in.StudentID) {
		return nil, false, s.rejected(ErrAlreadyCheckedIn)
	}

	// 5. Geofence. A degraded GPS fix widens the accepted radius rather
	// than punishing the student for their hardware.
	allowed := sess.Location.Radius
	if allowed <= 0 {
		allowed = s.cfg.DefaultGeofenceRadius
	}
	if in.Accuracy != nil && *in.Accuracy > s.cfg.DegradedAccuracyThreshold {
		allowed = s.cfg.DegradedGeofenceRadius
	}

	distance := geo.Distance(in.Lat, in.Lng, sess.Location.Lat, sess.Location.Lng)
	if distance > allowed {
		metrics.CheckInsTotal.WithLabelValues("out_of_range").Inc()
		s.notifier.OutOfRange(ctx, in.StudentID, sess.ID, distance, allowed)
		return &CheckInResult{
			Outcome:      OutcomeOutOfRange,
			Distance:     distance,
			PresentCount: sess.PresentCount,
			AbsentCount:  sess.AbsentCount,
		}, false, nil
	}

	// 6. Accept.
	sess.MarkPresent(model.PresentEntry{
		StudentID:   in.StudentID,
		CheckInTime: now,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Accuracy:    in.Accuracy,
		Device:      in.Device,
	})

	return &CheckInResult{
		Outcome:      OutcomePresent,
		Distance:     distance,
		PresentCount: sess.PresentCount,
		AbsentCount:  sess.AbsentCount,
	}, true, nil
}

func (s *AttendanceService) rejected(err error) error {
	metrics.CheckInsTotal.WithLabelValues("rejected").Inc()
	return err
}

// ─── Manual override ────────────────────────────────────────────────

// ManualOverride replaces the present set wholesale. The new lists are
// recomputed from the class's current active roster — never from the
// session's stale absent list — so members removed since the session was
// created cannot resurface. Check-in timestamps survive for students
// present both before and after; newly added ones get the current time.
func (s *AttendanceService) ManualOverride(ctx context.Context, sessionID uuid.UUID, lecturerID int, presentIDs []int) (*OverrideResult, error) {
	for attempt := 0; attempt < casMaxRetries; attempt++ {
		sess, err := s.getOwned(ctx, sessionID, lecturerID)
		if err != nil {
			return nil, err
		}
		if sess.ClassID == nil {
			return nil, ErrClassNotFound
		}

		roster, err := s.classes.ActiveRoster(ctx, *sess.ClassID)
		if err != nil {
			return nil, fmt.Errorf("load roster: %w", err)
		}

		now := s.now()
		requested := make(map[int]struct{}, len(presentIDs))
		for _, id := range presentIDs {
			requested[id] = struct{}{}
		}

		previous := make(map[int]model.PresentEntry, len(sess.Present))
		for _, entry := range sess.Present {
			previous[entry.StudentID] = entry
		}

		present := make([]model.PresentEntry, 0, len(presentIDs))
		absent := make([]int, 0, len(roster))
		for _, id := range roster {
			if _, ok := requested[id]; !ok {
				absent = append(absent, id)
				continue
			}
			if entry, ok := previous[id]; ok {
				present = append(present, entry)
			} else {
				present = append(present, model.PresentEntry{StudentID: id, CheckInTime: now})
			}
		}

		sess.Present = present
		sess.Absent = absent
		sess.PresentCount = len(present)
		sess.AbsentCount = len(absent)

		ok, err := s.sessions.UpdateCAS(ctx, sess)
		if err != nil {
			return nil, fmt.Errorf("persist override: %w", err)
		}
		if ok {
			s.notifier.SessionEvent(ctx, SessionEvent{
				Type:         EventOverride,
				SessionID:    sess.ID.String(),
				PresentCount: sess.PresentCount,
				AbsentCount:  sess.AbsentCount,
				At:           now,
			})
			s.log.Info().
				Str("session_id", sessionID.String()).
				Int("present", sess.PresentCount).
				Int("absent", sess.AbsentCount).
				Msg("manual attendance override applied")
			return &OverrideResult{PresentCount: sess.PresentCount, AbsentCount: sess.AbsentCount}, nil
		}
		metrics.CASConflicts.Inc()
	}
	return nil, ErrUpdateConflict
}

// ─── Reads ──────────────────────────────────────────────────────────

// GetSession returns a session for its owner.
func (s *AttendanceService) GetSession(ctx context.Context, sessionID uuid.UUID, lecturerID int) (*model.AttendanceSession, error) {
	return s.getOwned(ctx, sessionID, lecturerID)
}

// ListSessions returns a lecturer's session history, optionally narrowed
// to one class.
func (s *AttendanceService) ListSessions(ctx context.Context, lecturerID int, classID *int) ([]model.AttendanceSession, error) {
	return s.sessions.ListByLecturer(ctx, lecturerID, classID)
}

// ─── Helpers ────────────────────────────────────────────────────────

func (s *AttendanceService) reload(ctx context.Context, id uuid.UUID) (*model.AttendanceSession, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *AttendanceService) getOwned(ctx context.Context, id uuid.UUID, lecturerID int) (*model.AttendanceSession, error) {
	sess, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.LecturerID != lecturerID {
		return nil, ErrNotOwner
	}
	return sess, nil
}

func issueOf(sess *model.AttendanceSession) *SessionIssue {
	return &SessionIssue{
		SessionID:    sess.ID,
		Token:        sess.Token,
		ExpiresAt:    sess.ExpiresAt,
		PresentCount: sess.PresentCount,
		AbsentCount:  sess.AbsentCount,
	}
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
