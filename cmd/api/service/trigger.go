package service

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/lyzr/launchpad/common/models"
)

// PushEvent is the subset of a source-host webhook a trigger can inspect
type PushEvent struct {
	Event      string `json:"event"`
	Branch     string `json:"branch"`
	Repository string `json:"repository"`
	CloneURL   string `json:"clone_url"`
}

// TriggerEvaluator decides whether a push starts a build, using CEL
// expressions over branch, event and repository
type TriggerEvaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewTriggerEvaluator creates a new trigger evaluator with caching
func NewTriggerEvaluator() *TriggerEvaluator {
	return &TriggerEvaluator{
		cache: make(map[string]cel.Program),
	}
}

// ShouldTrigger reports whether the push matches the app's build trigger.
// An empty trigger matches pushes to the configured branch.
func (e *TriggerEvaluator) ShouldTrigger(cfg models.BuildConfig, push PushEvent) (bool, error) {
	if cfg.Trigger == "" {
		return push.Event == "push" && push.Branch == cfg.Branch, nil
	}

	prg, err := e.program(cfg.Trigger)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"branch":     push.Branch,
		"event":      push.Event,
		"repository": push.Repository,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

// Validate compiles a trigger expression without evaluating it
func (e *TriggerEvaluator) Validate(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := e.program(expr)
	return err
}

func (e *TriggerEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()
	if exists {
		return prg, nil
	}

	prg, err := compileTrigger(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

func compileTrigger(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("branch", cel.StringType),
		cel.Variable("event", cel.StringType),
		cel.Variable("repository", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return prg, nil
}

// CacheSize returns the number of compiled triggers
func (e *TriggerEvaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
