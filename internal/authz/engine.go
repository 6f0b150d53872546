// Package authz decides which session may perform which mood operation using
// an Open Policy Agent (Rego) policy.
package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

//go:embed policy/authz.rego
var defaultPolicy string

// Query is the Rego rule evaluated for every decision.
const Query = "data.moodboard.authz.allow"

// Action names an operation subject to authorization.
type Action string

const (
	ActionView  Action = "view"
	ActionAdd   Action = "add"
	ActionClear Action = "clear"
)

// Input describes a single authorization request.
type Input struct {
	Action Action
	Admin  bool
}

func (in Input) regoInput() map[string]interface{} {
	return map[string]interface{}{
		"action": string(in.Action),
		"session": map[string]interface{}{
			"admin": in.Admin,
		},
	}
}

// Engine wraps a prepared OPA query. It is safe for concurrent use.
type Engine struct {
	policyFile string
	logger     zerolog.Logger

	mu    sync.RWMutex
	query rego.PreparedEvalQuery
}

// NewEngine compiles the policy at policyFile, or the embedded default policy
// when policyFile is empty.
func NewEngine(policyFile string, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policyFile: policyFile,
		logger:     logger.With().Str("component", "authz").Logger(),
	}

	if err := e.prepare(); err != nil {
		return nil, err
	}

	source := policyFile
	if source == "" {
		source = "embedded"
	}
	e.logger.Info().Str("policy", source).Msg("Authorization policy loaded")

	return e, nil
}

func (e *Engine) loadModule() (string, string, error) {
	if e.policyFile == "" {
		return "authz.rego", defaultPolicy, nil
	}

	content, err := os.ReadFile(e.policyFile)
	if err != nil {
		return "", "", fmt.Errorf("failed to read policy file %s: %w", e.policyFile, err)
	}
	return e.policyFile, string(content), nil
}

func (e *Engine) prepare() error {
	name, src, err := e.loadModule()
	if err != nil {
		return err
	}

	// Parse first for a clearer error than PrepareForEval gives
	module, err := ast.ParseModule(name, src)
	if err != nil {
		return fmt.Errorf("failed to parse policy %s: %w", name, err)
	}

	query, err := rego.New(
		rego.Query(Query),
		rego.Module(name, src),
	).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("failed to prepare authorization query: %w", err)
	}

	e.mu.Lock()
	e.query = query
	e.mu.Unlock()

	e.logger.Debug().Str("package", module.Package.Path.String()).Msg("Authorization query prepared")
	return nil
}

// Allow evaluates the policy for in. An undefined result counts as a denial.
func (e *Engine) Allow(ctx context.Context, in Input) (bool, error) {
	start := time.Now()

	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(in.regoInput()))
	if err != nil {
		return false, fmt.Errorf("authorization query evaluation failed: %w", err)
	}

	e.logger.Debug().
		Str("action", string(in.Action)).
		Bool("admin", in.Admin).
		Dur("duration", time.Since(start)).
		Msg("Authorization evaluated")

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("authorization result is not a boolean: %T", results[0].Expressions[0].Value)
	}
	return allowed, nil
}

// Reload re-reads and recompiles the policy. On failure the previous policy
// stays active.
func (e *Engine) Reload() error {
	e.logger.Info().Msg("Reloading authorization policy")
	if err := e.prepare(); err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	return nil
}
