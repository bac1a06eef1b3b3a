package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates attendance session states. OPEN and EXPIRED are
// derived from the expiry; TERMINATED means the lecturer explicitly ended
// the window. Check-in attempts treat EXPIRED and TERMINATED identically,
// reporting keeps them apart.
type SessionStatus string

const (
	SessionStatusOpen       SessionStatus = "OPEN"
	SessionStatusExpired    SessionStatus = "EXPIRED"
	SessionStatusTerminated SessionStatus = "TERMINATED"
)

// DeviceInfo captures the device metadata reported with a check-in.
type DeviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// PresentEntry is one confirmed check-in inside a session.
type PresentEntry struct {
	StudentID   int        `json:"student_id"`
	CheckInTime time.Time  `json:"check_in_time"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Accuracy    *float64   `json:"accuracy,omitempty"`
	Device      DeviceInfo `json:"device"`
}

// AttendanceSession is one time-boxed, location-bound attendance window for
// a (class, week, lesson) slot. It exclusively owns its present/absent
// lists and derived counts; the roster is only referenced.
//
// ClassID is a pointer because the owning class may be deleted out from
// under an existing session; the reconciliation job reaps such orphans.
//
// Version drives optimistic concurrency: every persisted mutation bumps it
// and is applied compare-and-swap style against the value it was read at.
type AttendanceSession struct {
	ID         uuid.UUID `json:"id"`
	ClassID    *int      `json:"class_id"`
	LecturerID int       `json:"lecturer_id"`
	Week       int       `json:"week"`
	Lesson     int       `json:"lesson"`
	Location   Location  `json:"location"`
	Token      string    `json:"token"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Terminated bool      `json:"terminated"`

	Present      []PresentEntry `json:"present"`
	Absent       []int          `json:"absent"`
	PresentCount int            `json:"present_count"`
	AbsentCount  int            `json:"absent_count"`

	Version int `json:"-"`
}

// Status derives the session state at the given instant.
func (s *AttendanceSession) Status(now time.Time) SessionStatus {
	switch {
	case s.Terminated:
		return SessionStatusTerminated
	case !now.Before(s.ExpiresAt):
		return SessionStatusExpired
	default:
		return SessionStatusOpen
	}
}

// IsOpen reports whether check-ins are still accepted at the given instant.
func (s *AttendanceSession) IsOpen(now time.Time) bool {
	return s.Status(now) == SessionStatusOpen
}

// HasPresent reports whether the student already has a present entry.
func (s *AttendanceSession) HasPresent(studentID int) bool {
	for i := range s.Present {
		if s.Present[i].StudentID == studentID {
			return true
		}
	}
	return false
}

// MarkPresent appends a confirmed check-in, removes the student from the
// absent list and updates both counts. The caller is responsible for
// duplicate and eligibility checks.
func (s *AttendanceSession) MarkPresent(entry PresentEntry) {
	s.Present = append(s.Present, entry)

	absent := s.Absent[:0]
	for _, id := range s.Absent {
		if id != entry.StudentID {
			absent = append(absent, id)
		}
	}
	s.Absent = absent

	s.PresentCount = len(s.Present)
	s.AbsentCount = len(s.Absent)
}

// Rebuild restores the invariant present ∪ absent == activeRoster against
// the supplied roster: present entries for members no longer on the roster
// are dropped, absent becomes roster minus the surviving present set, and
// both counts are recomputed. It reports whether anything changed, so
// running it twice in a row is always a no-op the second time.
func (s *AttendanceSession) Rebuild(activeRoster []int) bool {
	onRoster := make(map[int]struct{}, len(activeRoster))
	for _, id := range activeRoster {
		onRoster[id] = struct{}{}
	}

	changed := false

	present := s.Present[:0]
	for _, entry := range s.Present {
		if _, ok := onRoster[entry.StudentID]; ok {
			present = append(present, entry)
		} else {
			changed = true
		}
	}
	s.Present = present

	presentIDs := make(map[int]struct{}, len(s.Present))
	for i := range s.Present {
		presentIDs[s.Present[i].StudentID] = struct{}{}
	}

	absent := make([]int, 0, len(activeRoster))
	for _, id := range activeRoster {
		if _, ok := presentIDs[id]; !ok {
			absent = append(absent, id)
		}
	}
	if !equalIntSlices(s.Absent, absent) {
		changed = true
	}
	s.Absent = absent

	if s.PresentCount != len(s.Present) || s.AbsentCount != len(s.Absent) {
		changed = true
	}
	s.PresentCount = len(s.Present)
	s.AbsentCount = len(s.Absent)

	return changed
}

func equalIntSlices(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ─── Request payloads ───────────────────────────────────────────────

// CreateSessionRequest opens (or refreshes) the attendance window for a slot.
type CreateSessionRequest struct {
	ClassID int `json:"class_id" binding:"required"`
	Week    int `json:"week" binding:"required"`
	Lesson  int `json:"lesson" binding:"required"`
}

// CheckInRequest is a student's proof-of-presence attempt.
// Lat/Lng carry only range tags: "required" on a float rejects the zero
// value, and 0.0 is a legal coordinate.
type CheckInRequest struct {
	SessionID string   `json:"session_id" binding:"required,uuid"`
	Token     string   `json:"token" binding:"required"`
	Lat       float64  `json:"lat" binding:"min=-90,max=90"`
	Lng       float64  `json:"lng" binding:"min=-180,max=180"`
	Accuracy  *float64 `json:"accuracy" binding:"omitempty,gte=0"`
}

// ManualOverrideRequest replaces the present set of a session wholesale.
type ManualOverrideRequest struct {
	PresentIDs []int `json:"present_ids" binding:"required"`
}
