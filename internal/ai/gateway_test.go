package ai

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedInvoker struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
	onInvoke  func(model string)
}

func (s *scriptedInvoker) Invoke(_ context.Context, model string, _ ChatRequest) ChatResult {
	s.mu.Lock()
	s.calls = append(s.calls, model)
	text := s.responses[model]
	hook := s.onInvoke
	s.mu.Unlock()

	if hook != nil {
		hook(model)
	}
	if text == "" {
		return NoContent()
	}
	return ChatResult{Text: text, Model: model}
}

func (s *scriptedInvoker) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recordingObserver struct {
	mu          sync.Mutex
	attempts    []string
	completions []int
	succeeded   []bool
}

func (o *recordingObserver) ObserveAttempt(_ Task, model string, _ bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, model)
}

func (o *recordingObserver) ObserveCompletion(_ Task, attempts int, hasContent bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completions = append(o.completions, attempts)
	o.succeeded = append(o.succeeded, hasContent)
}

func newTestGateway(invoker ChatInvoker, observer Observer, allowlist ...string) *Gateway {
	return NewGateway(GatewayDependencies{
		Invoker:  invoker,
		Models:   NewModelConfig(ModelConfigInput{DefaultModel: "A", FallbackModel: "B"}),
		Policy:   NewFreeTierPolicy(true, allowlist),
		Observer: observer,
	})
}

func TestGatewayUsesFallbackWhenPrimaryEmpty(t *testing.T) {
	invoker := &scriptedInvoker{responses: map[string]string{"B": `{"urgency":"low"}`}}
	gateway := newTestGateway(invoker, nil, "A", "B", "C")

	result := gateway.Complete(context.Background(), TaskEmailClassification, "A", testRequest())

	require.True(t, result.HasContent())
	assert.Equal(t, "B", result.Model)
	assert.Equal(t, []string{"A", "B"}, invoker.Calls())
}

func TestGatewayWalksAllowlistAfterFallback(t *testing.T) {
	invoker := &scriptedInvoker{responses: map[string]string{"C": "brief"}}
	observer := &recordingObserver{}
	gateway := newTestGateway(invoker, observer, "A", "B", "C")

	result := gateway.Complete(context.Background(), TaskMeetingBrief, "", testRequest())

	assert.Equal(t, "C", result.Model)
	assert.Equal(t, "brief", result.Text)
	assert.Equal(t, []string{"A", "B", "C"}, invoker.Calls())
	assert.Equal(t, []string{"A", "B", "C"}, observer.attempts)
	assert.Equal(t, []int{3}, observer.completions)
	assert.Equal(t, []bool{true}, observer.succeeded)
}

func TestGatewayNeverTriesModelTwice(t *testing.T) {
	invoker := &scriptedInvoker{responses: map[string]string{}}
	gateway := newTestGateway(invoker, nil, "B", "A", "B")

	result := gateway.Complete(context.Background(), TaskEmailClassification, "A", testRequest())

	assert.False(t, result.HasContent())
	assert.Equal(t, []string{"A", "B"}, invoker.Calls())
}

func TestGatewayExhaustionReturnsNoContent(t *testing.T) {
	invoker := &scriptedInvoker{responses: map[string]string{}}
	observer := &recordingObserver{}
	gateway := newTestGateway(invoker, observer, "A", "B", "C", "D")

	result := gateway.Complete(context.Background(), TaskTaskGeneration, "A", testRequest())

	assert.False(t, result.HasContent())
	assert.Empty(t, result.Model)
	assert.Equal(t, []string{"A", "B", "C", "D"}, invoker.Calls())
	assert.Equal(t, []bool{false}, observer.succeeded)
}

func TestGatewayEmptyAllowlistMakesNoCalls(t *testing.T) {
	invoker := &scriptedInvoker{responses: map[string]string{"A": "text"}}
	gateway := newTestGateway(invoker, nil)

	result := gateway.Complete(context.Background(), TaskEmailClassification, "A", testRequest())

	assert.False(t, result.HasContent())
	assert.Empty(t, invoker.Calls())
}

func TestGatewayUnavailableWithoutInvoker(t *testing.T) {
	gateway := newTestGateway(nil, nil, "A")

	assert.False(t, gateway.Available())
	assert.False(t, gateway.Complete(context.Background(), TaskEmailClassification, "A", testRequest()).HasContent())
}

func TestNewOpenRouterGatewayWithoutKeyIsUnavailable(t *testing.T) {
	gateway := NewOpenRouterGateway(
		OpenRouterClientConfig{},
		NewModelConfig(ModelConfigInput{}),
		NewFreeTierPolicy(true, DefaultFreeAllowlist),
		nil,
	)
	assert.False(t, gateway.Available())
}

func TestGatewayStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	invoker := &scriptedInvoker{
		responses: map[string]string{"C": "late"},
		onInvoke:  func(string) { cancel() },
	}
	gateway := newTestGateway(invoker, nil, "A", "B", "C")

	result := gateway.Complete(ctx, TaskEmailClassification, "A", testRequest())

	assert.False(t, result.HasContent())
	assert.Equal(t, []string{"A"}, invoker.Calls())
}

func TestGatewayPlanSubstitutesUnlistedRequest(t *testing.T) {
	gateway := newTestGateway(&scriptedInvoker{}, nil, "A", "B", "C")

	assert.Equal(t, []string{"A", "B", "C"}, gateway.Plan(TaskEmailClassification, "openai/gpt-4o"))
	assert.Equal(t, []string{"C", "B", "A"}, gateway.Plan(TaskEmailClassification, "C"))
}
