package ai

import "strings"

type Task string

const (
	TaskEmailClassification Task = "email_classification"
	TaskTaskGeneration      Task = "task_generation"
	TaskMeetingBrief        Task = "meeting_brief"
	TaskSummarization       Task = "summarization"
)

const (
	DefaultModel  = "meta-llama/llama-3.1-8b-instruct:free"
	FallbackModel = "mistralai/mistral-7b-instruct:free"
)

// DefaultFreeAllowlist is used when FREE_MODEL_ALLOWLIST is not set.
var DefaultFreeAllowlist = []string{
	"meta-llama/llama-3.1-8b-instruct:free",
	"mistralai/mistral-7b-instruct:free",
	"nousresearch/nous-hermes-2-mistral-7b:free",
}

type ModelConfigInput struct {
	DefaultModel  string
	FallbackModel string

	EmailModel   string
	TaskModel    string
	MeetingModel string
	SummaryModel string
}

// ModelConfig maps each task to its preferred model. It is built once at
// startup and never mutated.
type ModelConfig struct {
	defaultModel  string
	fallbackModel string
	byTask        map[Task]string
}

func NewModelConfig(input ModelConfigInput) ModelConfig {
	defaultModel := strings.TrimSpace(input.DefaultModel)
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	fallbackModel := strings.TrimSpace(input.FallbackModel)
	if fallbackModel == "" {
		fallbackModel = FallbackModel
	}

	return ModelConfig{
		defaultModel:  defaultModel,
		fallbackModel: fallbackModel,
		byTask: map[Task]string{
			TaskEmailClassification: firstNonEmpty(input.EmailModel, defaultModel),
			TaskTaskGeneration:      firstNonEmpty(input.TaskModel, defaultModel),
			TaskMeetingBrief:        firstNonEmpty(input.MeetingModel, defaultModel),
			TaskSummarization:       firstNonEmpty(input.SummaryModel, fallbackModel),
		},
	}
}

func (c ModelConfig) DefaultModel() string {
	return c.defaultModel
}

func (c ModelConfig) FallbackModel() string {
	return c.fallbackModel
}

// ModelFor returns the configured model for task, or the default model for
// unknown tasks.
func (c ModelConfig) ModelFor(task Task) string {
	if model, ok := c.byTask[task]; ok && model != "" {
		return model
	}
	return c.defaultModel
}

func (c ModelConfig) Tasks() []Task {
	return []Task{TaskEmailClassification, TaskTaskGeneration, TaskMeetingBrief, TaskSummarization}
}

// FreeTierPolicy restricts calls to an ordered allow-list when OnlyFree is set.
type FreeTierPolicy struct {
	onlyFree  bool
	allowlist []string
}

func NewFreeTierPolicy(onlyFree bool, allowlist []string) FreeTierPolicy {
	normalized := make([]string, 0, len(allowlist))
	seen := make(map[string]struct{}, len(allowlist))
	for _, raw := range allowlist {
		model := strings.TrimSpace(raw)
		if model == "" {
			continue
		}
		if _, exists := seen[model]; exists {
			continue
		}
		seen[model] = struct{}{}
		normalized = append(normalized, model)
	}
	return FreeTierPolicy{onlyFree: onlyFree, allowlist: normalized}
}

func (p FreeTierPolicy) OnlyFree() bool {
	return p.onlyFree
}

func (p FreeTierPolicy) Allowlist() []string {
	return append([]string(nil), p.allowlist...)
}

func (p FreeTierPolicy) Allows(model string) bool {
	for _, allowed := range p.allowlist {
		if allowed == model {
			return true
		}
	}
	return false
}

// ModelSelector resolves the concrete model id for a call.
type ModelSelector struct {
	config ModelConfig
	policy FreeTierPolicy
}

func NewModelSelector(config ModelConfig, policy FreeTierPolicy) ModelSelector {
	return ModelSelector{config: config, policy: policy}
}

// Resolve picks the model to call for task. An empty requested model falls
// back to the task's configured model. With the free-tier policy enabled a
// model outside the allow-list is replaced by the first allow-list entry
// without telling the caller; the returned id is the one actually used.
// ok is false only when the policy is enabled and the allow-list is empty.
func (s ModelSelector) Resolve(task Task, requested string) (string, bool) {
	candidate := strings.TrimSpace(requested)
	if candidate == "" {
		candidate = s.config.ModelFor(task)
	}
	if !s.policy.OnlyFree() {
		return candidate, true
	}
	if s.policy.Allows(candidate) {
		return candidate, true
	}
	// TODO: product owner to confirm whether unlisted paid models should map
	// to the closest free model instead of always the first allow-list entry.
	if len(s.policy.allowlist) == 0 {
		return "", false
	}
	return s.policy.allowlist[0], true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
