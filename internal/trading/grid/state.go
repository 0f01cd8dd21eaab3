package grid

import (
	"sync"

	"github.com/shopspring/decimal"
)

// State is the mutable grid state. Mutated only by the fill handler and
// the rebalancer; a single mutex guards all fields because Go schedules
// the loops preemptively.
type State struct {
	mu            sync.Mutex
	primaryFilled int64
	counterFilled int64
	matchProfit   decimal.Decimal
	midPrice      decimal.Decimal
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	PrimaryFilled int64
	CounterFilled int64
	Net           int64
	MatchProfit   decimal.Decimal
	MidPrice      decimal.Decimal
}

func NewState() *State {
	return &State{}
}

// RecordPrimaryFill books one primary-side terminal fill.
func (s *State) RecordPrimaryFill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primaryFilled++
}

// RecordCounterFill books one counter-side terminal fill and accrues
// the matched-pair profit.
func (s *State) RecordCounterFill(profit decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterFilled++
	s.matchProfit = s.matchProfit.Add(profit)
}

// SetMidPrice records the latest observed mid.
func (s *State) SetMidPrice(mid decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.midPrice = mid
}

// MidPrice returns the last observed mid, zero before the first tick.
func (s *State) MidPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.midPrice
}

// Net is primary fills minus counter fills. It upper-bounds the number
// of counter orders that may rest at once.
func (s *State) Net() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primaryFilled - s.counterFilled
}

// Snapshot returns a consistent copy of all counters.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		PrimaryFilled: s.primaryFilled,
		CounterFilled: s.counterFilled,
		Net:           s.primaryFilled - s.counterFilled,
		MatchProfit:   s.matchProfit,
		MidPrice:      s.midPrice,
	}
}
