package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-trader/internal/audit"
	"llm-trader/internal/errors"
)

// fakeClient scripts provider responses per call.
type fakeClient struct {
	calls     int
	responses []fakeResponse
}

type fakeResponse struct {
	resp *ChatResponse
	err  error
}

func (f *fakeClient) Complete(_ context.Context, _ string, _ []Message, _ float32, _ int) (*ChatResponse, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	return r.resp, r.err
}

func okResponse(content string, in, out int) fakeResponse {
	return fakeResponse{resp: &ChatResponse{
		Content:          content,
		PromptTokens:     in,
		CompletionTokens: out,
		FinishReason:     "stop",
	}}
}

func newTestGateway(client ChatClient, sink audit.Sink, budget int) *Gateway {
	return New(client, sink, NewCostTable(map[string]float64{"test-model": 0.01}, 0.03), Config{
		DailyTokenBudget: budget,
		MaxRetries:       2,
		BackoffBase:      time.Millisecond,
		BackoffMax:       5 * time.Millisecond,
		DefaultMaxTokens: 100,
	}, zerolog.Nop())
}

func testRequest() CallRequest {
	return CallRequest{
		Messages: []Message{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "task"},
		},
		Model:      "test-model",
		Caller:     "test-agent",
		MaxTokens:  100,
		MaxRetries: -1,
	}
}

func TestCallSuccessRecordsUsage(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &fakeClient{responses: []fakeResponse{okResponse("fine", 40, 20)}}
	gw := newTestGateway(client, sink, 100000)

	res, err := gw.Call(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "fine", res.Content)
	assert.Equal(t, 60, res.TotalTokens())
	assert.InDelta(t, 0.01*60/1000, res.Cost, 1e-9)

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "test-agent", records[0].Agent)
	assert.Equal(t, 40, records[0].InputTokens)
	assert.Equal(t, 20, records[0].OutputTokens)
	assert.Contains(t, records[0].Input, "task")
}

func TestCallBudgetExceededMakesNoAttemptAndNoRecord(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &fakeClient{responses: []fakeResponse{okResponse("never", 1, 1)}}
	// Budget smaller than any projection.
	gw := newTestGateway(client, sink, 10)

	_, err := gw.Call(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBudgetExceeded))

	var berr *errors.BudgetError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, 10, berr.DailyLimit)
	assert.Greater(t, berr.ProjectedTokens, 10)

	assert.Equal(t, 0, client.calls, "budget refusal must not reach the provider")
	assert.Empty(t, sink.Records(), "budget refusal must not touch the ledger")
}

func TestCallNegativeRetryConfigStillAttemptsOnce(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &fakeClient{responses: []fakeResponse{{err: fmt.Errorf("down")}}}
	// Both the gateway default and the request leave retries unset.
	gw := New(client, sink, NewCostTable(nil, 0.03), Config{
		DailyTokenBudget: 100000,
		MaxRetries:       -3,
		BackoffBase:      time.Millisecond,
		BackoffMax:       5 * time.Millisecond,
		DefaultMaxTokens: 100,
	}, zerolog.Nop())

	req := testRequest()
	req.MaxRetries = -1
	_, err := gw.Call(context.Background(), req)
	require.Error(t, err)

	var perr *errors.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Attempts)
	assert.Equal(t, 1, client.calls)
	require.Len(t, sink.Records(), 1, "the single failed attempt is still ledgered")
}

func TestCallBudgetCountsPriorUsage(t *testing.T) {
	sink := audit.NewMemorySink()
	require.NoError(t, sink.Record(context.Background(), audit.CallRecord{
		Agent:        "earlier",
		InputTokens:  400,
		OutputTokens: 500,
		Timestamp:    time.Now().UTC(),
	}))

	client := &fakeClient{responses: []fakeResponse{okResponse("x", 1, 1)}}
	// 900 already used; the projection (~105 tokens) no longer fits.
	gw := newTestGateway(client, sink, 1000)

	_, err := gw.Call(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBudgetExceeded))
	assert.Equal(t, 0, client.calls)
}

func TestCallRetriesThenSucceeds(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &fakeClient{responses: []fakeResponse{
		{err: fmt.Errorf("transient 1")},
		{err: fmt.Errorf("transient 2")},
		okResponse("third time", 10, 5),
	}}
	gw := newTestGateway(client, sink, 100000)

	res, err := gw.Call(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "third time", res.Content)
	assert.Equal(t, 3, client.calls)

	// Only the terminal success lands in the ledger.
	require.Len(t, sink.Records(), 1)
	assert.Equal(t, 15, sink.Records()[0].InputTokens+sink.Records()[0].OutputTokens)
}

func TestCallRetriesExhaustedWritesZeroCostFailureRecord(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &fakeClient{responses: []fakeResponse{{err: fmt.Errorf("provider down")}}}
	gw := newTestGateway(client, sink, 100000)

	_, err := gw.Call(context.Background(), testRequest())
	require.Error(t, err)

	var perr *errors.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "test-model", perr.Model)
	assert.Equal(t, 3, perr.Attempts, "maxRetries=2 means 3 attempts")
	assert.ErrorContains(t, perr.Err, "provider down")

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Zero(t, records[0].InputTokens)
	assert.Zero(t, records[0].OutputTokens)
	assert.Zero(t, records[0].Cost)
	assert.Contains(t, records[0].Output, "ERROR: ")
	assert.Contains(t, records[0].Output, "provider down")
	assert.Contains(t, records[0].Input, "task", "failure record keeps the full input")
}

func TestCallPerRequestRetryOverride(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &fakeClient{responses: []fakeResponse{{err: fmt.Errorf("down")}}}
	gw := newTestGateway(client, sink, 100000)

	req := testRequest()
	req.MaxRetries = 0
	_, err := gw.Call(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 1, client.calls, "zero retries means exactly one attempt")
}

func TestCallContextCancelledDuringBackoff(t *testing.T) {
	sink := audit.NewMemorySink()
	client := &fakeClient{responses: []fakeResponse{{err: fmt.Errorf("down")}}}

	gw := New(client, sink, NewCostTable(nil, 0.03), Config{
		DailyTokenBudget: 100000,
		MaxRetries:       5,
		BackoffBase:      time.Hour,
		BackoffMax:       time.Hour,
		DefaultMaxTokens: 100,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := gw.Call(ctx, testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, client.calls, "cancellation during backoff stops further attempts")
}

func TestCostTableUnknownModelUsesDefaultRate(t *testing.T) {
	table := NewCostTable(map[string]float64{"known": 0.001}, 0.03)

	assert.InDelta(t, 0.001, table.Cost("known", 1000), 1e-9)
	assert.InDelta(t, 0.03, table.Cost("mystery-model", 1000), 1e-9)
	assert.Zero(t, table.Cost("known", 0))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, estimateTokens(""))
	assert.Equal(t, 3, estimateTokens("12345678"))
}
