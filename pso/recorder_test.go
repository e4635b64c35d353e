package pso

import (
	"context"
	"database/sql"
	"testing"

	"golang.org/x/exp/rand"
	_ "modernc.org/sqlite"
)

func TestRecorder(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	// In-memory sqlite databases are per-connection.
	db.SetMaxOpenConns(1)

	const npop, epochs = 6, 4
	lb, ub := bounds(3, -2, 2)
	o, err := New(lb, ub, NPop(npop), Epochs(epochs),
		Record(NewRecorder(db)),
		Rng(rand.New(rand.NewSource(21))))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Minimize(context.Background(), ObjectiveFunc(sphere)); err != nil {
		t.Fatal(err)
	}

	// Initial state plus every epoch.
	wantRows := npop * (epochs + 1)
	for _, tbl := range []string{TblParticles, TblParticlesBest} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + tbl).Scan(&count); err != nil {
			t.Errorf("[ERROR] %v query failed: %v", tbl, err)
		} else if count != wantRows {
			t.Errorf("[ERROR] %v has %v rows, want %v", tbl, count, wantRows)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + TblBest).Scan(&count); err != nil {
		t.Errorf("[ERROR] %v query failed: %v", TblBest, err)
	} else if count != epochs+1 {
		t.Errorf("[ERROR] %v has %v rows, want %v", TblBest, count, epochs+1)
	}

	// Recorded bests must be non-increasing epoch over epoch.
	rows, err := db.Query("SELECT cost FROM " + TblBest + " ORDER BY epoch")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	prev := 0.0
	first := true
	for rows.Next() {
		var cost float64
		if err := rows.Scan(&cost); err != nil {
			t.Fatal(err)
		}
		if !first && cost > prev {
			t.Errorf("[ERROR] recorded best rose from %v to %v", prev, cost)
		}
		prev, first = cost, false
	}
}
