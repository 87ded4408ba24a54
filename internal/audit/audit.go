// Package audit provides the append-only model-call ledger.
//
// Every gateway attempt writes one immutable CallRecord, success or failure.
// The daily budget is enforced by summing the ledger on demand; there is no
// separately maintained running counter, so concurrent appends never race a
// read-modify-write cycle.
package audit

import (
	"context"
	"sync"
	"time"
)

// CallRecord is one model-call attempt. Immutable once written.
type CallRecord struct {
	Agent        string
	Model        string
	Input        string
	Output       string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Latency      time.Duration
	Timestamp    time.Time
}

// Usage is the rolled-up ledger total for one day.
type Usage struct {
	Tokens int
	Cost   float64
	Calls  int
}

// Sink records call attempts and answers daily usage rollups.
type Sink interface {
	Record(ctx context.Context, rec CallRecord) error
	DailyUsage(ctx context.Context, day time.Time) (Usage, error)
}

// DecisionEntry is one persisted engine decision, flattened for storage.
type DecisionEntry struct {
	RunID      string
	Symbol     string
	Action     string
	Quantity   float64
	Confidence float64
	Reasoning  string
	Engine     string
	Strategy   string
	Status     string
	Tokens     int
	Cost       float64
	Timestamp  time.Time
}

// DecisionLog persists decision outcomes alongside the call ledger.
type DecisionLog interface {
	SaveDecision(ctx context.Context, entry DecisionEntry) error
	RecentDecisions(ctx context.Context, symbol string, limit int) ([]DecisionEntry, error)
}

// MemorySink is an in-memory Sink for tests and backtests.
type MemorySink struct {
	mu        sync.Mutex
	records   []CallRecord
	decisions []DecisionEntry
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends a call record.
func (s *MemorySink) Record(_ context.Context, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// DailyUsage sums all records whose timestamp falls on the given UTC day.
func (s *MemorySink) DailyUsage(_ context.Context, day time.Time) (Usage, error) {
	start, end := dayBounds(day)

	s.mu.Lock()
	defer s.mu.Unlock()

	var u Usage
	for _, rec := range s.records {
		if rec.Timestamp.Before(start) || !rec.Timestamp.Before(end) {
			continue
		}
		u.Tokens += rec.InputTokens + rec.OutputTokens
		u.Cost += rec.Cost
		u.Calls++
	}
	return u, nil
}

// Records returns a copy of all recorded calls, oldest first.
func (s *MemorySink) Records() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.records))
	copy(out, s.records)
	return out
}

// SaveDecision appends a decision entry.
func (s *MemorySink) SaveDecision(_ context.Context, entry DecisionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, entry)
	return nil
}

// RecentDecisions returns up to limit decisions, newest first. An empty
// symbol matches all symbols.
func (s *MemorySink) RecentDecisions(_ context.Context, symbol string, limit int) ([]DecisionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DecisionEntry, 0, limit)
	for i := len(s.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol != "" && s.decisions[i].Symbol != symbol {
			continue
		}
		out = append(out, s.decisions[i])
	}
	return out, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
