package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelConfigDefaults(t *testing.T) {
	config := NewModelConfig(ModelConfigInput{})

	assert.Equal(t, DefaultModel, config.DefaultModel())
	assert.Equal(t, FallbackModel, config.FallbackModel())
	assert.Equal(t, DefaultModel, config.ModelFor(TaskEmailClassification))
	assert.Equal(t, FallbackModel, config.ModelFor(TaskSummarization))
	assert.Equal(t, DefaultModel, config.ModelFor(Task("unknown")))
}

func TestModelConfigPerTaskOverrides(t *testing.T) {
	config := NewModelConfig(ModelConfigInput{
		DefaultModel: "base",
		EmailModel:   " email-model ",
		SummaryModel: "summary-model",
	})

	assert.Equal(t, "email-model", config.ModelFor(TaskEmailClassification))
	assert.Equal(t, "base", config.ModelFor(TaskTaskGeneration))
	assert.Equal(t, "summary-model", config.ModelFor(TaskSummarization))
}

func TestFreeTierPolicyNormalizesAllowlist(t *testing.T) {
	policy := NewFreeTierPolicy(true, []string{" a ", "", "b", "a"})

	assert.Equal(t, []string{"a", "b"}, policy.Allowlist())
	assert.True(t, policy.Allows("b"))
	assert.False(t, policy.Allows("c"))

	copied := policy.Allowlist()
	copied[0] = "mutated"
	assert.Equal(t, "a", policy.Allowlist()[0])
}

func TestModelSelectorResolve(t *testing.T) {
	config := NewModelConfig(ModelConfigInput{DefaultModel: "A", FallbackModel: "B"})

	tests := []struct {
		name      string
		policy    FreeTierPolicy
		requested string
		want      string
		wantOK    bool
	}{
		{name: "allowed request kept", policy: NewFreeTierPolicy(true, []string{"A", "B"}), requested: "B", want: "B", wantOK: true},
		{name: "empty request uses task model", policy: NewFreeTierPolicy(true, []string{"A", "B"}), requested: "", want: "A", wantOK: true},
		{name: "unlisted request substituted", policy: NewFreeTierPolicy(true, []string{"A", "B"}), requested: "paid/gpt", want: "A", wantOK: true},
		{name: "policy disabled passes through", policy: NewFreeTierPolicy(false, []string{"A"}), requested: "paid/gpt", want: "paid/gpt", wantOK: true},
		{name: "empty allowlist yields no model", policy: NewFreeTierPolicy(true, nil), requested: "A", want: "", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			selector := NewModelSelector(config, tc.policy)
			got, ok := selector.Resolve(TaskEmailClassification, tc.requested)
			require.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestModelSelectorResultAlwaysAllowedWhenOnlyFree(t *testing.T) {
	policy := NewFreeTierPolicy(true, []string{"x:free", "y:free"})
	selector := NewModelSelector(NewModelConfig(ModelConfigInput{}), policy)

	for _, requested := range []string{"", "x:free", "y:free", "openai/gpt-4o", "anthropic/claude"} {
		for _, task := range NewModelConfig(ModelConfigInput{}).Tasks() {
			got, ok := selector.Resolve(task, requested)
			require.True(t, ok)
			assert.True(t, policy.Allows(got), "resolved %q for %q", got, requested)
		}
	}
}

func TestModelSelectorIsDeterministic(t *testing.T) {
	selector := NewModelSelector(NewModelConfig(ModelConfigInput{}), NewFreeTierPolicy(true, DefaultFreeAllowlist))

	first, _ := selector.Resolve(TaskMeetingBrief, "some/model")
	for i := 0; i < 10; i++ {
		again, _ := selector.Resolve(TaskMeetingBrief, "some/model")
		assert.Equal(t, first, again)
	}
}
