package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"splitguard/internal/decision"
)

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func boundary(action decision.Action, sec int, reason string) decision.Record {
	return decision.Record{
		At:         at(sec),
		Controller: decision.Engine,
		Action:     action,
		Cause:      decision.CauseSession,
		Reason:     reason,
	}
}

func split(controller string, cause decision.Cause, sec int) decision.Record {
	return decision.Record{
		At:         at(sec),
		GameTime:   float64(sec),
		Controller: controller,
		Action:     decision.ActionDisassemble,
		Cause:      cause,
		Item:       "item_tranquil_boots",
	}
}

// write records everything into a fresh journal, closes it so the queue is
// drained, and reopens it for querying.
func write(t *testing.T, recs ...decision.Record) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")

	j, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for _, r := range recs {
		j.Record(r)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if st := j.Stats(); st.Dropped != 0 {
		t.Fatalf("Expected no drops, got %d", st.Dropped)
	}

	j, err = Open(path, 0)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// TestSessionsFollowBoundaries verifies engine boundary records open and
// close sessions.
func TestSessionsFollowBoundaries(t *testing.T) {
	j := write(t,
		boundary(decision.ActionSessionStart, 0, ""),
		split(decision.Tranquil, decision.CauseThreat, 1),
		split(decision.Tranquil, decision.CauseAntiStickCycle, 2),
		boundary(decision.ActionReset, 3, "game_ended"),
		boundary(decision.ActionSessionStart, 10, ""),
		split(decision.Khanda, decision.CauseCastIntercept, 11),
	)

	sessions, err := j.Sessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}

	latest, first := sessions[0], sessions[1]
	if latest.Decisions != 1 || first.Decisions != 2 {
		t.Errorf("Expected decision counts 1 and 2, got %d and %d", latest.Decisions, first.Decisions)
	}
	if first.EndedAt == nil || !first.EndedAt.Equal(at(3)) || first.EndReason != "game_ended" {
		t.Errorf("Expected first session ended at %v by game_ended, got %v %q", at(3), first.EndedAt, first.EndReason)
	}
	if latest.EndedAt == nil || latest.EndReason != "shutdown" {
		t.Errorf("Expected open session closed on shutdown, got %v %q", latest.EndedAt, latest.EndReason)
	}
	if !first.StartedAt.Equal(at(0)) {
		t.Errorf("Expected start %v, got %v", at(0), first.StartedAt)
	}

	recs, err := j.Decisions(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Decisions failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(recs))
	}
	if recs[0].Cause != decision.CauseThreat || recs[1].Cause != decision.CauseAntiStickCycle {
		t.Errorf("Expected THREAT then ANTI_STICK_CYCLE, got %s then %s", recs[0].Cause, recs[1].Cause)
	}
	if recs[1].GameTime != 2 || !recs[1].At.Equal(at(2)) || recs[1].Item != "item_tranquil_boots" {
		t.Errorf("Expected round-tripped fields, got %+v", recs[1])
	}
}

// TestDecisionWithoutSessionOpensOne verifies records arriving before any
// boundary still land in a session.
func TestDecisionWithoutSessionOpensOne(t *testing.T) {
	j := write(t, split(decision.Tranquil, decision.CauseHoldKey, 5))

	sessions, err := j.Sessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Decisions != 1 {
		t.Fatalf("Expected one session with one decision, got %+v", sessions)
	}
}

// TestResetWithoutSessionIsIgnored verifies a stray reset writes nothing.
func TestResetWithoutSessionIsIgnored(t *testing.T) {
	j := write(t, boundary(decision.ActionReset, 1, "disconnect"))

	sessions, err := j.Sessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Expected no sessions, got %d", len(sessions))
	}
}

// TestSessionsLimit verifies the newest sessions come first and limit applies.
func TestSessionsLimit(t *testing.T) {
	var recs []decision.Record
	for i := range 5 {
		recs = append(recs,
			boundary(decision.ActionSessionStart, i*10, ""),
			boundary(decision.ActionReset, i*10+5, "operator"),
		)
	}
	j := write(t, recs...)

	sessions, err := j.Sessions(context.Background(), 2)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if !sessions[0].StartedAt.Equal(at(40)) {
		t.Errorf("Expected newest start %v, got %v", at(40), sessions[0].StartedAt)
	}
}

// TestUnknownSession verifies the sentinel error.
func TestUnknownSession(t *testing.T) {
	j := write(t)

	_, err := j.Decisions(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

// TestRecordAfterClose verifies late records are dropped, not panicking.
func TestRecordAfterClose(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "j.db"), 4)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}

	j.Record(split(decision.Tranquil, decision.CauseThreat, 1))
	if got := j.Stats().Dropped; got != 1 {
		t.Errorf("Expected 1 dropped, got %d", got)
	}
}
