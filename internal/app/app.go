// Package app builds the engine from configuration. All three binaries
// share this wiring; nothing here is a process-wide singleton, every handle
// is constructed and passed down explicitly.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vinkalabs/membot/internal/ai"
	"github.com/vinkalabs/membot/internal/assembler"
	"github.com/vinkalabs/membot/internal/config"
	"github.com/vinkalabs/membot/internal/memory"
	"github.com/vinkalabs/membot/internal/quota"
	"github.com/vinkalabs/membot/internal/semantic"
	"github.com/vinkalabs/membot/internal/tenant"
)

// NewProviderRegistry registers the providers the deployment knows about.
func NewProviderRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m, cfg.OllamaEmbedModel), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		p := ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m)
		p.EmbedModel = cfg.OpenRouterEmbedModel
		return p, nil
	})
	return reg
}

// BuildAssembler wires the full engine: store repos, classifier, semantic
// index, tenant registry, quota enforcer and the retry-wrapped provider.
func BuildAssembler(cfg config.Config, gdb *gorm.DB, logger *zap.Logger) (*assembler.Assembler, *tenant.Registry, *quota.Enforcer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := NewProviderRegistry(cfg)
	provider, err := reg.Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building provider: %w", err)
	}

	var index semantic.Index = semantic.NoopIndex{}
	if cfg.SemanticEnabled {
		embedder, ok := provider.(ai.Embedder)
		if !ok {
			return nil, nil, nil, fmt.Errorf("provider %s does not support embeddings", cfg.AIProvider)
		}
		index, err = semantic.NewChromemIndex(cfg.ChromemPath, embedder, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("building semantic index: %w", err)
		}
	}

	heuristic := memory.NewHeuristicScorer(nil)
	var scorer memory.Scorer = heuristic
	if strings.EqualFold(cfg.ClassifierStrategy, "model") {
		scorer = memory.NewModelScorer(heuristic, provider, cfg.LongTermThreshold, logger)
	}

	manager := memory.NewManager(memory.NewRepo(gdb), scorer, index, cfg.LongTermThreshold, logger)
	tenants := tenant.NewRegistry(gdb, cfg.DefaultSystemPrompt)
	enforcer := quota.NewEnforcer(
		quota.NewRepo(gdb),
		tenants,
		quota.PeriodKind(cfg.QuotaPeriod),
		cfg.DefaultMessageLimit,
		logger,
	)

	asm := assembler.New(
		enforcer,
		tenants,
		manager,
		index,
		ai.NewRetryingProvider(provider),
		assembler.Options{
			RetrieveLimit: cfg.RetrieveLimit,
			SemanticK:     semanticK(cfg),
		},
		logger,
	)
	return asm, tenants, enforcer, nil
}

func semanticK(cfg config.Config) int {
	if !cfg.SemanticEnabled {
		return 0
	}
	return cfg.SemanticK
}
