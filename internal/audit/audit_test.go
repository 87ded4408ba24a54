package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAt(ts time.Time, tokens int, cost float64) CallRecord {
	return CallRecord{
		Agent:        "a",
		Model:        "m",
		InputTokens:  tokens / 2,
		OutputTokens: tokens - tokens/2,
		Cost:         cost,
		Timestamp:    ts,
	}
}

func TestMemorySinkDailyUsageDayBounds(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()
	day := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Record(ctx, recordAt(day, 100, 0.01)))
	require.NoError(t, sink.Record(ctx, recordAt(day.Add(11*time.Hour), 50, 0.005)))
	// Previous and next day never count.
	require.NoError(t, sink.Record(ctx, recordAt(day.AddDate(0, 0, -1), 999, 1)))
	require.NoError(t, sink.Record(ctx, recordAt(day.Add(13*time.Hour), 999, 1)))

	usage, err := sink.DailyUsage(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 150, usage.Tokens)
	assert.InDelta(t, 0.015, usage.Cost, 1e-9)
	assert.Equal(t, 2, usage.Calls)
}

func TestMemorySinkEmptyDay(t *testing.T) {
	sink := NewMemorySink()
	usage, err := sink.DailyUsage(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, usage.Tokens)
	assert.Zero(t, usage.Calls)
}

func TestMemorySinkConcurrentAppends(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Record(ctx, recordAt(now, 10, 0.001))
			_, _ = sink.DailyUsage(ctx, now)
		}()
	}
	wg.Wait()

	usage, err := sink.DailyUsage(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 500, usage.Tokens)
	assert.Equal(t, 50, usage.Calls)
}

func TestMemorySinkRecordsReturnsCopy(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, recordAt(time.Now(), 10, 0)))

	records := sink.Records()
	records[0].Agent = "mutated"
	assert.Equal(t, "a", sink.Records()[0].Agent)
}

func TestMemorySinkRecentDecisions(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	for i, sym := range []string{"ACME", "XYZ", "ACME"} {
		require.NoError(t, sink.SaveDecision(ctx, DecisionEntry{
			RunID:     "run-" + sym,
			Symbol:    sym,
			Action:    "buy",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := sink.RecentDecisions(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, base.Add(2*time.Hour), all[0].Timestamp, "newest first")

	acme, err := sink.RecentDecisions(ctx, "ACME", 10)
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	limited, err := sink.RecentDecisions(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteSinkDecisionLog(t *testing.T) {
	sink, err := NewSQLiteSink(t.TempDir() + "/audit.db")
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	require.NoError(t, sink.SaveDecision(ctx, DecisionEntry{
		RunID: "run-1", Symbol: "ACME", Action: "buy",
		Quantity: 10, Confidence: 75, Reasoning: "uptrend",
		Engine: "rule", Strategy: "sma-cross", Status: "completed",
		Timestamp: base,
	}))
	require.NoError(t, sink.SaveDecision(ctx, DecisionEntry{
		RunID: "run-2", Symbol: "XYZ", Action: "hold",
		Engine: "llm", Status: "completed_hold",
		Tokens: 320, Cost: 0.012,
		Timestamp: base.Add(time.Hour),
	}))

	all, err := sink.RecentDecisions(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-2", all[0].RunID, "newest first")
	assert.Equal(t, 320, all[0].Tokens)

	acme, err := sink.RecentDecisions(ctx, "ACME", 10)
	require.NoError(t, err)
	require.Len(t, acme, 1)
	assert.Equal(t, "buy", acme[0].Action)
	assert.Equal(t, 10.0, acme[0].Quantity)
	assert.Equal(t, "sma-cross", acme[0].Strategy)
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	sink, err := NewSQLiteSink(t.TempDir() + "/audit.db")
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	day := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)

	require.NoError(t, sink.Record(ctx, CallRecord{
		Agent:        "market-analyst",
		Model:        "gpt-4o-mini",
		Input:        "system: sys\nuser: task\n",
		Output:       "fine",
		InputTokens:  40,
		OutputTokens: 20,
		Cost:         0.0004,
		Latency:      120 * time.Millisecond,
		Timestamp:    day,
	}))
	require.NoError(t, sink.Record(ctx, CallRecord{
		Agent:     "market-analyst",
		Model:     "gpt-4o-mini",
		Input:     "system: sys\n",
		Output:    "ERROR: provider down",
		Timestamp: day.Add(time.Hour),
	}))

	usage, err := sink.DailyUsage(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 60, usage.Tokens, "failure records add zero tokens")
	assert.InDelta(t, 0.0004, usage.Cost, 1e-9)
	assert.Equal(t, 2, usage.Calls)

	other, err := sink.DailyUsage(ctx, day.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Zero(t, other.Calls)
}
