package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestSession(roster []int) *AttendanceSession {
	classID := 1
	return &AttendanceSession{
		ID:          uuid.New(),
		ClassID:     &classID,
		LecturerID:  9,
		Week:        3,
		Lesson:      1,
		CreatedAt:   time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC),
		ExpiresAt:   time.Date(2026, time.March, 2, 8, 1, 0, 0, time.UTC),
		Absent:      append([]int(nil), roster...),
		AbsentCount: len(roster),
	}
}

func verifyInvariants(t *testing.T, s *AttendanceSession) {
	t.Helper()
	if s.PresentCount != len(s.Present) {
		t.Fatalf("presentCount = %d, |present| = %d", s.PresentCount, len(s.Present))
	}
	if s.AbsentCount != len(s.Absent) {
		t.Fatalf("absentCount = %d, |absent| = %d", s.AbsentCount, len(s.Absent))
	}
	absent := make(map[int]bool, len(s.Absent))
	for _, id := range s.Absent {
		absent[id] = true
	}
	for i := range s.Present {
		if absent[s.Present[i].StudentID] {
			t.Fatalf("student %d is both present and absent", s.Present[i].StudentID)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	s := newTestSession([]int{1})

	before := s.ExpiresAt.Add(-time.Second)
	at := s.ExpiresAt
	after := s.ExpiresAt.Add(time.Hour)

	if got := s.Status(before); got != SessionStatusOpen {
		t.Fatalf("Status before expiry = %s, want OPEN", got)
	}
	if got := s.Status(at); got != SessionStatusExpired {
		t.Fatalf("Status at expiry = %s, want EXPIRED", got)
	}
	if got := s.Status(after); got != SessionStatusExpired {
		t.Fatalf("Status after expiry = %s, want EXPIRED", got)
	}

	s.Terminated = true
	if got := s.Status(before); got != SessionStatusTerminated {
		t.Fatalf("Status of terminated session = %s, want TERMINATED", got)
	}
	if s.IsOpen(before) {
		t.Fatal("terminated session must not accept check-ins")
	}
}

func TestMarkPresentMovesStudent(t *testing.T) {
	s := newTestSession([]int{1, 2, 3})

	s.MarkPresent(PresentEntry{StudentID: 2, CheckInTime: s.CreatedAt})

	verifyInvariants(t, s)
	if s.PresentCount != 1 || s.AbsentCount != 2 {
		t.Fatalf("counts = (%d, %d), want (1, 2)", s.PresentCount, s.AbsentCount)
	}
	if !s.HasPresent(2) {
		t.Fatal("student 2 should be present")
	}
	for _, id := range s.Absent {
		if id == 2 {
			t.Fatal("student 2 still listed absent")
		}
	}
}

func TestRebuildDropsRemovedMembers(t *testing.T) {
	// S3 was removed from the roster after the session snapshot.
	s := newTestSession([]int{1, 2, 3})
	s.MarkPresent(PresentEntry{StudentID: 1, CheckInTime: s.CreatedAt})

	changed := s.Rebuild([]int{1, 2})
	if !changed {
		t.Fatal("expected Rebuild to report a change")
	}
	verifyInvariants(t, s)
	if s.AbsentCount != 1 || s.Absent[0] != 2 {
		t.Fatalf("absent = %v, want [2]", s.Absent)
	}
	if s.PresentCount != 1 {
		t.Fatalf("presentCount = %d, want 1", s.PresentCount)
	}
}

func TestRebuildDropsDeactivatedPresentEntry(t *testing.T) {
	s := newTestSession([]int{1, 2})
	s.MarkPresent(PresentEntry{StudentID: 1, CheckInTime: s.CreatedAt})
	s.MarkPresent(PresentEntry{StudentID: 2, CheckInTime: s.CreatedAt})

	// Student 1 was deactivated: their check-in entry must disappear too.
	changed := s.Rebuild([]int{2})
	if !changed {
		t.Fatal("expected Rebuild to report a change")
	}
	verifyInvariants(t, s)
	if s.PresentCount != 1 || s.Present[0].StudentID != 2 {
		t.Fatalf("present = %+v, want only student 2", s.Present)
	}
	if s.AbsentCount != 0 {
		t.Fatalf("absentCount = %d, want 0", s.AbsentCount)
	}
}

func TestRebuildAddsNewRosterMembers(t *testing.T) {
	s := newTestSession([]int{1, 2})

	changed := s.Rebuild([]int{1, 2, 4})
	if !changed {
		t.Fatal("expected Rebuild to report a change")
	}
	verifyInvariants(t, s)
	if s.AbsentCount != 3 {
		t.Fatalf("absent = %v, want roster of 3", s.Absent)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	s := newTestSession([]int{1, 2, 3, 4})
	s.MarkPresent(PresentEntry{StudentID: 3, CheckInTime: s.CreatedAt})

	roster := []int{2, 3, 5}
	if changed := s.Rebuild(roster); !changed {
		t.Fatal("first Rebuild should change the session")
	}
	verifyInvariants(t, s)

	if changed := s.Rebuild(roster); changed {
		t.Fatal("second Rebuild with the same roster must be a no-op")
	}
	verifyInvariants(t, s)
}

func TestRebuildNoChangeOnConsistentSession(t *testing.T) {
	s := newTestSession([]int{1, 2})
	if changed := s.Rebuild([]int{1, 2}); changed {
		t.Fatal("Rebuild of a consistent session must report no change")
	}
}
