package usecase_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/usecase"
)

func btcRecord() domain.Position {
	return domain.Position{
		Symbol:     "BTC",
		Side:       domain.SideLong,
		EntryPrice: 100,
		Size:       500,
		EntryTime:  time.Now(),
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := usecase.NewPositionRegistry()

	if err := reg.Register(btcRecord()); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	err := reg.Register(btcRecord())
	if !errors.Is(err, domain.ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
}

func TestRegistry_RemoveFirstCallerWins(t *testing.T) {
	reg := usecase.NewPositionRegistry()
	if err := reg.Register(btcRecord()); err != nil {
		t.Fatal(err)
	}

	if _, ok := reg.Remove("BTC"); !ok {
		t.Fatal("first remove should return the record")
	}
	if _, ok := reg.Remove("BTC"); ok {
		t.Fatal("second remove should return absent")
	}
}

// No double close: race N callers against one record, exactly one wins.
func TestRegistry_ConcurrentRemoveSingleWinner(t *testing.T) {
	for i := 0; i < 100; i++ {
		reg := usecase.NewPositionRegistry()
		if err := reg.Register(btcRecord()); err != nil {
			t.Fatal(err)
		}

		const callers = 16
		var wins int64
		var wg sync.WaitGroup
		start := make(chan struct{})

		for c := 0; c < callers; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if _, ok := reg.Remove("BTC"); ok {
					atomic.AddInt64(&wins, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly 1 winning remove, got %d", wins)
		}
	}
}

// Concurrent updates serialize: every increment lands, none clobbered.
func TestRegistry_UpdateSerializes(t *testing.T) {
	reg := usecase.NewPositionRegistry()
	if err := reg.Register(btcRecord()); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	const perWorker = 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = reg.Update("BTC", func(p *domain.Position) {
					p.PeakPnLPct++
				})
			}
		}()
	}
	wg.Wait()

	rec, ok := reg.Get("BTC")
	if !ok {
		t.Fatal("record disappeared")
	}
	if rec.PeakPnLPct != workers*perWorker {
		t.Fatalf("lost updates: got %.0f, want %d", rec.PeakPnLPct, workers*perWorker)
	}
}

func TestRegistry_UpdateAfterRemove(t *testing.T) {
	reg := usecase.NewPositionRegistry()
	if err := reg.Register(btcRecord()); err != nil {
		t.Fatal(err)
	}
	reg.Remove("BTC")

	err := reg.Update("BTC", func(p *domain.Position) { p.PeakPnLPct = 99 })
	if !errors.Is(err, domain.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

// Updates racing removes must either land before the remove or fail with
// not-found; the removed copy reflects every update that reported success.
func TestRegistry_UpdateRemoveRace(t *testing.T) {
	for i := 0; i < 200; i++ {
		reg := usecase.NewPositionRegistry()
		if err := reg.Register(btcRecord()); err != nil {
			t.Fatal(err)
		}

		var applied int64
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if reg.Update("BTC", func(p *domain.Position) { p.PeakPnLPct++ }) == nil {
					atomic.AddInt64(&applied, 1)
				}
			}
		}()
		var removed domain.Position
		go func() {
			defer wg.Done()
			for {
				if rec, ok := reg.Remove("BTC"); ok {
					removed = rec
					return
				}
			}
		}()
		wg.Wait()

		if removed.PeakPnLPct > float64(applied) {
			t.Fatalf("removed copy saw %f updates, only %d were acknowledged", removed.PeakPnLPct, applied)
		}
	}
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	reg := usecase.NewPositionRegistry()
	if err := reg.Register(btcRecord()); err != nil {
		t.Fatal(err)
	}

	snap := reg.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 record, got %d", len(snap))
	}
	snap[0].PeakPnLPct = 42

	rec, _ := reg.Get("BTC")
	if rec.PeakPnLPct != 0 {
		t.Fatal("mutating the snapshot leaked into the registry")
	}
}

func TestRegistry_Len(t *testing.T) {
	reg := usecase.NewPositionRegistry()
	if reg.Len() != 0 {
		t.Fatal("empty registry should have length 0")
	}
	reg.Register(btcRecord())
	rec := btcRecord()
	rec.Symbol = "ETH"
	reg.Register(rec)
	if reg.Len() != 2 {
		t.Fatalf("expected 2, got %d", reg.Len())
	}
}
