package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mkonda/probemux/internal/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// A file-backed index per test keeps tests isolated from the shared
	// in-memory database other tests may hold open.
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	started := time.Now().UTC().Truncate(time.Second)
	argv := []string{"ssh", "--target", "10.0.0.1:22"}
	if err := s.RecordSession("sess-1", "cli", argv, 4242, started); err != nil {
		t.Fatalf("failed to record session: %v", err)
	}

	rec, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if rec == nil {
		t.Fatal("expected session record, got nil")
	}
	if rec.Client != "cli" {
		t.Errorf("expected client cli, got %q", rec.Client)
	}
	if len(rec.Argv) != 3 || rec.Argv[0] != "ssh" {
		t.Errorf("expected argv round trip, got %v", rec.Argv)
	}
	if rec.ProcessID != 4242 {
		t.Errorf("expected process id 4242, got %d", rec.ProcessID)
	}
	if rec.CompletedAt != nil {
		t.Error("expected no completion before MarkCompleted")
	}

	if err := s.MarkCompleted("sess-1", 0, time.Now().UTC()); err != nil {
		t.Fatalf("failed to mark completed: %v", err)
	}

	rec, err = s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}
	if rec.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
	if rec.ExitCode == nil || *rec.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", rec.ExitCode)
	}
}

func TestGetSessionUnknown(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.GetSession("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for unknown session, got %+v", rec)
	}
}

func TestSearchFindings(t *testing.T) {
	s := newTestStore(t)

	findings := []struct {
		session string
		client  string
		f       protocol.Finding
	}{
		{"sess-1", "cli", protocol.Finding{FoundAt: "12:00:01", Plugin: "ssh", Target: "10.0.0.1:22", Data: "root:toor"}},
		{"sess-1", "cli", protocol.Finding{FoundAt: "12:00:02", Plugin: "ssh", Target: "10.0.0.2:22", Data: "admin:admin"}},
		{"sess-2", "web", protocol.Finding{FoundAt: "12:00:03", Plugin: "sql-injection", Target: "http://target", Data: "found admin:admin123"}},
	}
	for _, fr := range findings {
		if err := s.RecordFinding(fr.session, fr.client, fr.f); err != nil {
			t.Fatalf("failed to record finding: %v", err)
		}
	}

	t.Run("NoFilterReturnsAll", func(t *testing.T) {
		got, err := s.SearchFindings(FindingQuery{})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 findings, got %d", len(got))
		}
	})

	t.Run("FilterBySession", func(t *testing.T) {
		got, err := s.SearchFindings(FindingQuery{SessionID: "sess-1"})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 findings for sess-1, got %d", len(got))
		}
	})

	t.Run("FilterByPlugin", func(t *testing.T) {
		got, err := s.SearchFindings(FindingQuery{Plugin: "sql-injection"})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(got))
		}
		if got[0].Data != "found admin:admin123" {
			t.Errorf("expected data preserved, got %q", got[0].Data)
		}
		if got[0].Client != "web" {
			t.Errorf("expected client attribution, got %q", got[0].Client)
		}
	})

	t.Run("FilterByTargetSubstring", func(t *testing.T) {
		got, err := s.SearchFindings(FindingQuery{Target: "10.0.0"})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 findings matching target substring, got %d", len(got))
		}
	})

	t.Run("FilterByDataSubstring", func(t *testing.T) {
		got, err := s.SearchFindings(FindingQuery{Data: "toor"})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected 1 finding matching data substring, got %d", len(got))
		}
	})

	t.Run("LimitApplies", func(t *testing.T) {
		got, err := s.SearchFindings(FindingQuery{Limit: 1})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected limit of 1, got %d", len(got))
		}
	})
}

func TestCountFindings(t *testing.T) {
	s := newTestStore(t)

	if err := s.RecordFinding("sess-1", "cli", protocol.Finding{FoundAt: "t", Plugin: "ssh", Data: "a:b"}); err != nil {
		t.Fatalf("failed to record finding: %v", err)
	}
	if err := s.RecordFinding("sess-2", "cli", protocol.Finding{FoundAt: "t", Plugin: "ssh", Data: "c:d"}); err != nil {
		t.Fatalf("failed to record finding: %v", err)
	}

	total, err := s.CountFindings("")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 findings total, got %d", total)
	}

	one, err := s.CountFindings("sess-1")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if one != 1 {
		t.Errorf("expected 1 finding for sess-1, got %d", one)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestStore(t)
	if err := s.HealthCheck(); err != nil {
		t.Errorf("expected healthy store, got %v", err)
	}
}

func TestInMemoryIndexSurvivesPoolChurn(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	defer s.Close()

	f := protocol.Finding{FoundAt: "12:00:01", Plugin: "ssh", Target: "10.0.0.9:22", Data: "root:toor"}
	if err := s.RecordFinding("sess-mem", "cli", f); err != nil {
		t.Fatalf("failed to record finding: %v", err)
	}

	// Drop every idle pooled connection. Only the pinned connection keeps
	// the in-memory database alive; without it the schema and data would
	// be gone here.
	s.conn.SetMaxIdleConns(0)

	found, err := s.SearchFindings(FindingQuery{SessionID: "sess-mem"})
	if err != nil {
		t.Fatalf("search after pool churn failed: %v", err)
	}
	if len(found) != 1 || found[0].Plugin != "ssh" {
		t.Errorf("expected the recorded finding to survive, got %+v", found)
	}
}
