// Package assembler wires quota admission, tenant resolution, memory and
// semantic recall into a single message-handling entry point.
package assembler

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/ai"
	"github.com/vinkalabs/membot/internal/memory"
	"github.com/vinkalabs/membot/internal/quota"
	"github.com/vinkalabs/membot/internal/semantic"
	"github.com/vinkalabs/membot/internal/tenant"
)

// Fixed user-facing replies. Quota denial and completion failure are normal
// outcomes, not errors surfaced to the user as such.
const (
	LimitReachedReply = "You have reached your message limit for this period. Please try again later."
	ApologyReply      = "Sorry, something went wrong on my side. Please try again."
)

type Options struct {
	RetrieveLimit int
	SemanticK     int
}

type Assembler struct {
	enforcer *quota.Enforcer
	tenants  *tenant.Registry
	memory   *memory.Manager
	index    semantic.Index
	provider ai.Provider
	opts     Options
	logger   *zap.Logger
}

func New(
	enforcer *quota.Enforcer,
	tenants *tenant.Registry,
	mem *memory.Manager,
	index semantic.Index,
	provider ai.Provider,
	opts Options,
	logger *zap.Logger,
) *Assembler {
	if index == nil {
		index = semantic.NoopIndex{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RetrieveLimit <= 0 {
		opts.RetrieveLimit = 12
	}
	return &Assembler{
		enforcer: enforcer,
		tenants:  tenants,
		memory:   mem,
		index:    index,
		provider: provider,
		opts:     opts,
		logger:   logger,
	}
}

// Handle processes one inbound message and returns the reply text. Storage
// failures during admission and resolution abort the turn; completion
// failure yields the fixed apology with no assistant entry and no usage
// charge, so the user can safely retry.
func (a *Assembler) Handle(ctx context.Context, userID, text string) (string, error) {
	decision, err := a.enforcer.Admit(ctx, userID)
	if err != nil {
		return "", err
	}
	if !decision.Allowed {
		a.logger.Info("message denied by quota",
			zap.String("user_id", userID),
			zap.String("subject_id", decision.SubjectID),
			zap.Int64("used", decision.Used),
			zap.Int("limit", decision.Limit),
		)
		return LimitReachedReply, nil
	}

	res, err := a.tenants.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	if _, err := a.memory.Commit(ctx, userID, memory.RoleUser, text); err != nil {
		return "", err
	}

	entries, err := a.memory.Retrieve(ctx, userID, a.opts.RetrieveLimit)
	if err != nil {
		return "", err
	}

	var hits []semantic.Hit
	if a.opts.SemanticK > 0 {
		hits, err = a.index.Query(ctx, userID, text, a.opts.SemanticK)
		if err != nil {
			// Degraded recall, never a user-facing failure.
			a.logger.Warn("semantic query failed", zap.String("user_id", userID), zap.Error(err))
			hits = nil
		}
	}

	prompt := a.buildPrompt(res.SystemPrompt, hits, entries, text)

	reply, err := a.provider.Chat(ctx, prompt)
	if err != nil {
		a.logger.Error("completion call failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return ApologyReply, nil
	}

	if _, err := a.memory.Commit(ctx, userID, memory.RoleAssistant, reply); err != nil {
		return "", err
	}
	if err := a.enforcer.CommitUsage(ctx, decision.SubjectID); err != nil {
		return "", err
	}

	return reply, nil
}

// Reset wipes the user's memory and vectors. Exposed for the /reset command
// and the admin surface.
func (a *Assembler) Reset(ctx context.Context, userID string) error {
	return a.memory.Reset(ctx, userID)
}

// buildPrompt assembles the ordered prompt: tenant system prompt, semantic
// hits labeled as background memory, the retrieved window in chronological
// order, then the new user message. The retrieval window was written after
// the user turn was committed, so a trailing copy of the incoming message
// is dropped before the explicit final turn is appended.
func (a *Assembler) buildPrompt(systemPrompt string, hits []semantic.Hit, entries []memory.Entry, text string) []ai.Message {
	msgs := make([]ai.Message, 0, len(entries)+3)
	msgs = append(msgs, ai.Message{Role: memory.RoleSystem, Content: systemPrompt})

	if len(hits) > 0 {
		var b strings.Builder
		b.WriteString("Relevant background memory about this user:")
		for _, h := range hits {
			if strings.TrimSpace(h.Content) == strings.TrimSpace(text) {
				continue
			}
			b.WriteString("\n- ")
			b.WriteString(h.Content)
		}
		if block := b.String(); strings.Contains(block, "\n- ") {
			msgs = append(msgs, ai.Message{Role: memory.RoleSystem, Content: block})
		}
	}

	ordered := append([]memory.Entry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	if n := len(ordered); n > 0 {
		last := ordered[n-1]
		if last.Role == memory.RoleUser && last.Content == text {
			ordered = ordered[:n-1]
		}
	}
	for _, e := range ordered {
		msgs = append(msgs, ai.Message{Role: e.Role, Content: e.Content})
	}

	msgs = append(msgs, ai.Message{Role: memory.RoleUser, Content: text})
	return msgs
}
