package memory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/semantic"
)

// MaxRetrieveLimit bounds the working set a single retrieval may return,
// which in turn bounds prompt size.
const MaxRetrieveLimit = 20

// Manager owns the write and retrieval policy for conversation memory.
// Entries are ranked so that a single highly-important fact from days ago
// outranks trivial recent turns instead of scrolling out by pure recency.
type Manager struct {
	repo              *Repo
	scorer            Scorer
	index             semantic.Index
	longTermThreshold float64
	logger            *zap.Logger
}

func NewManager(repo *Repo, scorer Scorer, index semantic.Index, longTermThreshold float64, logger *zap.Logger) *Manager {
	if index == nil {
		index = semantic.NoopIndex{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if longTermThreshold <= 0 {
		longTermThreshold = IdentityScore - 1
	}
	return &Manager{
		repo:              repo,
		scorer:            scorer,
		index:             index,
		longTermThreshold: longTermThreshold,
		logger:            logger,
	}
}

// Commit scores and appends one entry. User-role entries that clear the
// long-term threshold are also handed to the semantic index; that step is
// best-effort and never fails the commit.
func (m *Manager) Commit(ctx context.Context, userID, role, content string) (Entry, error) {
	entry := Entry{
		UserID:     userID,
		Role:       role,
		Content:    content,
		Importance: m.scorer.Score(ctx, content),
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.repo.Append(ctx, &entry); err != nil {
		return Entry{}, err
	}

	if role == RoleUser && entry.Importance >= m.longTermThreshold {
		if err := m.index.IndexText(ctx, userID, content); err != nil {
			m.logger.Warn("semantic indexing skipped",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	return entry, nil
}

// Retrieve returns up to limit entries ordered by importance DESC then
// recency DESC. A user with no history gets an empty slice, not an error.
func (m *Manager) Retrieve(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > MaxRetrieveLimit {
		limit = MaxRetrieveLimit
	}
	return m.repo.ListRanked(ctx, userID, limit)
}

// Reset irreversibly deletes the user's entries and semantic vectors.
func (m *Manager) Reset(ctx context.Context, userID string) error {
	if err := m.repo.DeleteAll(ctx, userID); err != nil {
		return err
	}
	if err := m.index.Wipe(ctx, userID); err != nil {
		m.logger.Warn("semantic wipe failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return nil
}
