// Package pipeline orchestrates the end-to-end flow: plain-text policy
// in, versioned ruleset artifact saved, activated, registered, and
// optionally pinned with a generated test suite.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/policyforge/policyforge/pkg/generator"
	"github.com/policyforge/policyforge/pkg/observability"
	"github.com/policyforge/policyforge/pkg/parser"
	"github.com/policyforge/policyforge/pkg/registry"
	"github.com/policyforge/policyforge/pkg/store"
	"github.com/policyforge/policyforge/pkg/testgen"
)

// Stage names in execution order.
const (
	StageParse    = "parse"
	StageGenerate = "generate"
	StageSave     = "save"
	StageActivate = "activate"
	StageRegister = "register"
	StageTestgen  = "testgen"
)

// StageResult records one pipeline stage's outcome.
type StageResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail,omitempty"`
}

// RunResult is the outcome of one policy conversion.
type RunResult struct {
	RunID       string         `json:"run_id"`
	EntityID    string         `json:"entity_id"`
	Version     string         `json:"version"`
	ContentHash string         `json:"content_hash"`
	Functions   int            `json:"functions"`
	Stages      []StageResult  `json:"stages"`
	Suite       *testgen.Suite `json:"suite,omitempty"`
}

// Pipeline wires the parser, generator, store, and registry together.
type Pipeline struct {
	parser   *parser.Parser
	store    *store.Store
	registry registry.Registry
	logger   *slog.Logger
	obs      *observability.Provider
	suites   bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithObservability records spans and metrics per run and stage.
func WithObservability(provider *observability.Provider) Option {
	return func(p *Pipeline) { p.obs = provider }
}

// WithSuiteGeneration makes every run emit a pinned test suite for the
// saved artifact.
func WithSuiteGeneration() Option {
	return func(p *Pipeline) { p.suites = true }
}

// New builds a pipeline over a store and registry.
func New(s *store.Store, reg registry.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		parser:   parser.NewParser(),
		store:    s,
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p
}

// Run converts one policy document. Stages run in order and the first
// failure aborts the run; a registration failure is reported but leaves
// the saved artifact in place, since the artifact itself is valid.
func (p *Pipeline) Run(ctx context.Context, policyText string) (*RunResult, error) {
	runID := uuid.NewString()
	if p.obs == nil {
		return p.run(ctx, runID, policyText)
	}
	ctx, done := p.obs.TrackOperation(ctx, "pipeline.run",
		attribute.String("run_id", runID))
	result, err := p.run(ctx, runID, policyText)
	done(err)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, runID, policyText string) (*RunResult, error) {
	result := &RunResult{RunID: runID}
	logger := p.logger.With("run_id", result.RunID)

	// parse
	stageStart := time.Now()
	doc := p.parser.Parse(policyText)
	result.Stages = append(result.Stages, StageResult{
		Name:     StageParse,
		Duration: time.Since(stageStart),
		Detail:   fmt.Sprintf("%d rules from %q", len(doc.Rules), doc.Company),
	})
	logger.Info("policy parsed", "company", doc.Company, "rules", len(doc.Rules))

	// generate
	stageStart = time.Now()
	ruleset, blob, err := generator.Generate(doc)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	result.EntityID = ruleset.EntityID
	result.Functions = len(ruleset.Functions)
	result.Stages = append(result.Stages, StageResult{
		Name:     StageGenerate,
		Duration: time.Since(stageStart),
		Detail:   fmt.Sprintf("%d functions, %d bytes", len(ruleset.Functions), len(blob)),
	})

	// save
	stageStart = time.Now()
	saved, err := p.store.Save(ctx, ruleset.EntityID, blob, map[string]any{
		"policy_name":    ruleset.Policy.Name,
		"policy_version": ruleset.Policy.Version,
		"effective_date": ruleset.Policy.Effective,
		"run_id":         result.RunID,
	})
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	result.Version = saved.Version.String()
	result.ContentHash = saved.ContentHash
	result.Stages = append(result.Stages, StageResult{
		Name:     StageSave,
		Duration: time.Since(stageStart),
		Detail:   fmt.Sprintf("version %s hash %s", saved.Version, saved.ContentHash),
	})
	logger.Info("artifact saved",
		"entity_id", saved.EntityID, "version", saved.Version.String(), "hash", saved.ContentHash)

	// activate
	stageStart = time.Now()
	ns, err := p.store.Activate(ctx, saved.EntityID)
	if err != nil {
		return nil, fmt.Errorf("activate: %w", err)
	}
	defer func() { _ = ns.Close(ctx) }()
	result.Stages = append(result.Stages, StageResult{
		Name:     StageActivate,
		Duration: time.Since(stageStart),
	})

	// register
	stageStart = time.Now()
	if _, err := p.registry.Register(ctx, saved.EntityID, ns); err != nil {
		return result, fmt.Errorf("register: %w", err)
	}
	result.Stages = append(result.Stages, StageResult{
		Name:     StageRegister,
		Duration: time.Since(stageStart),
		Detail:   fmt.Sprintf("%d functions registered", result.Functions),
	})

	// testgen (optional)
	if p.suites {
		stageStart = time.Now()
		suite, err := testgen.GenerateSuite(ruleset)
		if err != nil {
			return result, fmt.Errorf("testgen: %w", err)
		}
		result.Suite = suite
		result.Stages = append(result.Stages, StageResult{
			Name:     StageTestgen,
			Duration: time.Since(stageStart),
			Detail:   fmt.Sprintf("%d cases", len(suite.Cases)),
		})
	}

	logger.Info("run complete", "entity_id", result.EntityID, "version", result.Version)
	return result, nil
}
