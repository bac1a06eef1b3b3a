package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/jackc/pgx/v5"
)

// fakeSessionStore is an in-memory SessionStore with the same
// compare-and-swap semantics as the Postgres repository: UpdateCAS only
// succeeds when the caller's version matches the stored one.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.AttendanceSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*model.AttendanceSession)}
}

// clone round-trips through JSON so callers never share slices with the
// stored copy. Version is carried manually because it is not serialized.
func cloneSession(s *model.AttendanceSession) *model.AttendanceSession {
	raw, _ := json.Marshal(s)
	var out model.AttendanceSession
	_ = json.Unmarshal(raw, &out)
	out.Token = s.Token
	out.Version = s.Version
	return &out
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.AttendanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneSession(s), nil
}

func (f *fakeSessionStore) FindOpenSlot(_ context.Context, classID, week, lesson int, now time.Time) (*model.AttendanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ClassID != nil && *s.ClassID == classID && s.Week == week && s.Lesson == lesson &&
			!s.Terminated && s.ExpiresAt.After(now) {
			return cloneSession(s), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) Create(_ context.Context, s *model.AttendanceSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Version = 1
	f.sessions[s.ID] = cloneSession(s)
	return nil
}

func (f *fakeSessionStore) UpdateCAS(_ context.Context, s *model.AttendanceSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[s.ID]
	if !ok || stored.Version != s.Version {
		return false, nil
	}
	s.Version++
	f.sessions[s.ID] = cloneSession(s)
	return true, nil
}

func (f *fakeSessionStore) List(_ context.Context) ([]model.AttendanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.AttendanceSession, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *cloneSession(s))
	}
	return out, nil
}

func (f *fakeSessionStore) ListByLecturer(_ context.Context, lecturerID int, classID *int) ([]model.AttendanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AttendanceSession{}
	for _, s := range f.sessions {
		if s.LecturerID != lecturerID {
			continue
		}
		if classID != nil && (s.ClassID == nil || *s.ClassID != *classID) {
			continue
		}
		out = append(out, *cloneSession(s))
	}
	return out, nil
}

func (f *fakeSessionStore) DeleteOrphans(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.ClassID == nil {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

// orphan detaches a session from its class, simulating the FK SET NULL
// fired when the class row is deleted.
func (f *fakeSessionStore) orphan(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.ClassID = nil
	}
}

// fakeClassStore serves classes and rosters from maps.
type fakeClassStore struct {
	mu      sync.Mutex
	classes map[int]*model.Class
	rosters map[int][]int
}

func newFakeClassStore() *fakeClassStore {
	return &fakeClassStore{
		classes: make(map[int]*model.Class),
		rosters: make(map[int][]int),
	}
}

func (f *fakeClassStore) GetByID(_ context.Context, id int) (*model.Class, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.classes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *c
	if c.Location != nil {
		loc := *c.Location
		copied.Location = &loc
	}
	return &copied, nil
}

func (f *fakeClassStore) ActiveRoster(_ context.Context, classID int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int{}, f.rosters[classID]...), nil
}

func (f *fakeClassStore) ActiveRostersByClass(_ context.Context) (map[int][]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int][]int, len(f.rosters))
	for id, roster := range f.rosters {
		out[id] = append([]int{}, roster...)
	}
	return out, nil
}

func (f *fakeClassStore) setRoster(classID int, ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosters[classID] = ids
}

// recordingNotifier captures fired events for assertions.
type recordingNotifier struct {
	mu         sync.Mutex
	events     []SessionEvent
	outOfRange []OutOfRangePayload
}

func (r *recordingNotifier) SessionEvent(_ context.Context, evt SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingNotifier) OutOfRange(_ context.Context, studentID int, sessionID uuid.UUID, distance, allowed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outOfRange = append(r.outOfRange, OutOfRangePayload{
		StudentID: studentID,
		SessionID: sessionID.String(),
		Distance:  distance,
		Allowed:   allowed,
	})
}

// fakeLocker is an in-process Locker for reconcile tests.
type fakeLocker struct {
	mu   sync.Mutex
	held bool
}

func (l *fakeLocker) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) Release(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
}

// fakeClock is a settable clock shared by the service and signer under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
