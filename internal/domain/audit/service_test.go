package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testAuditRepo struct {
	entries   []Entry
	lastLimit int
	failNext  bool
}

func (r *testAuditRepo) Append(ctx context.Context, e Entry) error {
	if r.failNext {
		r.failNext = false
		return errors.New("append failed")
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *testAuditRepo) ListByPatient(ctx context.Context, patientID string, limit int) ([]Entry, error) {
	r.lastLimit = limit
	out := make([]Entry, 0)
	for _, e := range r.entries {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestService_Record_FillsIDAndTimestamp(t *testing.T) {
	repo := &testAuditRepo{}
	svc := NewService(repo, nil)

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.Record(context.Background(), "patient-1", "doctor-1", ActionRecordViewed, map[string]any{
		"grantId": "grant-1",
	})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.Timestamp.Equal(now) {
		t.Fatalf("expected timestamp %v, got %v", now, e.Timestamp)
	}
	if e.Action != ActionRecordViewed || e.DoctorID != "doctor-1" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestService_Record_SkipsEmptyPatient(t *testing.T) {
	repo := &testAuditRepo{}
	svc := NewService(repo, nil)

	svc.Record(context.Background(), "  ", "doctor-1", ActionRecordViewed, nil)

	if len(repo.entries) != 0 {
		t.Fatalf("expected no entry without patient, got %d", len(repo.entries))
	}
}

func TestService_Record_BestEffortOnRepoFailure(t *testing.T) {
	repo := &testAuditRepo{failNext: true}
	svc := NewService(repo, nil)

	// No panic, no error hacia el caller.
	svc.Record(context.Background(), "patient-1", "", ActionGrantIssued, nil)
}

func TestService_ListByPatient_NormalizesLimit(t *testing.T) {
	repo := &testAuditRepo{}
	svc := NewService(repo, nil)

	cases := []struct {
		in   int
		want int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{50, 50},
		{maxLimit + 1, maxLimit},
	}
	for _, c := range cases {
		if _, err := svc.ListByPatient(context.Background(), "patient-1", c.in); err != nil {
			t.Fatalf("ListByPatient(%d) error: %v", c.in, err)
		}
		if repo.lastLimit != c.want {
			t.Fatalf("limit %d: expected %d, got %d", c.in, c.want, repo.lastLimit)
		}
	}
}

func TestService_ListByPatient_RequiresPatient(t *testing.T) {
	svc := NewService(&testAuditRepo{}, nil)

	if _, err := svc.ListByPatient(context.Background(), "", 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
