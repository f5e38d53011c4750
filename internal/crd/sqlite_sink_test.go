package crd

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTestSQLite(t *testing.T) *SQLiteSink {
	t.Helper()
	s, err := OpenSQLiteSink(filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSinkStoresRowsInArtifactOrder(t *testing.T) {
	s := openTestSQLite(t)
	snap := &Snapshot{RunID: "run-a", Energy: 4, Events: 3, Workers: 3, StartedAt: time.Now()}
	snap.Hits[CategorySiPM] = []HitRecord{{X: 1, E: 2.818}, {X: 2, E: 2.818}}
	snap.Hits[CategoryStep] = []HitRecord{{X: 3, E: 1500}}
	snap.Merged[CategoryStep] = 4
	snap.Dropped[CategoryStep] = 3
	if err := s.Write(context.Background(), snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := s.DB().Query(`SELECT seq, type, x FROM hits WHERE run_id = ? ORDER BY seq`, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var types []string
	var nullX int
	for rows.Next() {
		var seq int
		var typ string
		var x sql.NullFloat64
		if err := rows.Scan(&seq, &typ, &x); err != nil {
			t.Fatal(err)
		}
		types = append(types, typ)
		if !x.Valid {
			nullX++
		}
	}
	want := []string{"SiPM", "SiPM", "MC_EMPTY", "Step"}
	if len(types) != len(want) {
		t.Fatalf("types=%v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("types=%v want %v", types, want)
		}
	}
	if nullX != 1 {
		t.Fatalf("sentinel should have NULL coordinates, nulls=%d", nullX)
	}

	var energy float64
	var n int
	if err := s.DB().QueryRow(`SELECT energy_ev, rows FROM runs WHERE run_id = ?`, "run-a").Scan(&energy, &n); err != nil {
		t.Fatal(err)
	}
	if energy != 4 || n != 4 {
		t.Fatalf("run row: energy=%v rows=%d", energy, n)
	}
	var dropped int
	if err := s.DB().QueryRow(`SELECT dropped FROM drops WHERE run_id = ? AND category = 'Step'`, "run-a").Scan(&dropped); err != nil {
		t.Fatal(err)
	}
	if dropped != 3 {
		t.Fatalf("dropped=%d", dropped)
	}
}

func TestSQLiteSinkDuplicateRunFails(t *testing.T) {
	s := openTestSQLite(t)
	snap := &Snapshot{RunID: "dup"}
	if err := s.Write(context.Background(), snap); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := s.Write(context.Background(), snap); !errors.Is(err, ErrSinkFailed) {
		t.Fatalf("expected ErrSinkFailed, got %v", err)
	}
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM hits WHERE run_id = 'dup'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("failed run must roll back, hits=%d", n)
	}
}

func TestSQLiteSinkRequiresRunID(t *testing.T) {
	s := openTestSQLite(t)
	if err := s.Write(context.Background(), &Snapshot{}); !errors.Is(err, ErrSinkFailed) {
		t.Fatalf("got %v", err)
	}
	if _, err := OpenSQLiteSink(" ", zerolog.Nop()); err == nil {
		t.Fatal("empty path accepted")
	}
}
