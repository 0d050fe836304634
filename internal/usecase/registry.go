package usecase

import (
	"fmt"
	"sync"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
)

// PositionRegistry is the canonical symbol-keyed store of open positions.
// It is the only mutable state shared between the exit monitor and the
// orchestrator, so every operation is atomic per symbol: callers get copies
// and push mutations through Update rather than holding live records.
//
// Remove is the serialization point that decides which loop wins a close:
// exactly one caller receives the record, everyone else gets absent.
type PositionRegistry struct {
	mu    sync.RWMutex
	slots map[string]*positionSlot
}

type positionSlot struct {
	mu  sync.Mutex
	rec domain.Position
}

func NewPositionRegistry() *PositionRegistry {
	return &PositionRegistry{
		slots: make(map[string]*positionSlot),
	}
}

// Register adds a new record. A symbol maps to at most one open record, so
// a duplicate fails with ErrAlreadyOpen and the existing record is left
// untouched.
func (r *PositionRegistry) Register(rec domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[rec.Symbol]; exists {
		return fmt.Errorf("%s: %w", rec.Symbol, domain.ErrAlreadyOpen)
	}
	r.slots[rec.Symbol] = &positionSlot{rec: rec}
	return nil
}

// Get returns a copy of the record for symbol, or false if absent.
func (r *PositionRegistry) Get(symbol string) (domain.Position, bool) {
	r.mu.RLock()
	slot, ok := r.slots[symbol]
	r.mu.RUnlock()
	if !ok {
		return domain.Position{}, false
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.rec, true
}

// Update applies mutate to the record under its per-symbol exclusive
// section, so concurrent callers serialize instead of clobbering each
// other's peak and trailing updates. Returns ErrPositionNotFound if the
// record was removed, including removal that raced this call.
func (r *PositionRegistry) Update(symbol string, mutate func(*domain.Position)) error {
	for {
		r.mu.RLock()
		slot, ok := r.slots[symbol]
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%s: %w", symbol, domain.ErrPositionNotFound)
		}

		slot.mu.Lock()
		// Re-fetch under the slot lock: a concurrent Remove may have taken
		// this slot out of the map (or a close-and-reopen may have replaced
		// it) between the lookup and the lock.
		r.mu.RLock()
		cur, ok := r.slots[symbol]
		r.mu.RUnlock()
		if !ok {
			slot.mu.Unlock()
			return fmt.Errorf("%s: %w", symbol, domain.ErrPositionNotFound)
		}
		if cur != slot {
			slot.mu.Unlock()
			continue
		}

		mutate(&slot.rec)
		slot.mu.Unlock()
		return nil
	}
}

// Remove deletes the record and returns it to the first caller only; a
// concurrent second Remove gets false, which the caller must treat as
// "already closed elsewhere, do not re-submit a close order".
func (r *PositionRegistry) Remove(symbol string) (domain.Position, bool) {
	r.mu.Lock()
	slot, ok := r.slots[symbol]
	if ok {
		delete(r.slots, symbol)
	}
	r.mu.Unlock()
	if !ok {
		return domain.Position{}, false
	}

	// Wait for any in-flight Update on this slot to finish so the returned
	// copy reflects it.
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.rec, true
}

// Snapshot returns a consistent point-in-time copy of every record. It
// never blocks a concurrent Update or Remove for longer than one record
// copy.
func (r *PositionRegistry) Snapshot() []domain.Position {
	r.mu.RLock()
	slots := make([]*positionSlot, 0, len(r.slots))
	for _, slot := range r.slots {
		slots = append(slots, slot)
	}
	r.mu.RUnlock()

	out := make([]domain.Position, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		out = append(out, slot.rec)
		slot.mu.Unlock()
	}
	return out
}

// Len reports the number of open records.
func (r *PositionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}
