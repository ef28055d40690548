package semantic

import (
	"context"
	"fmt"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/ai"
)

// ChromemIndex stores embeddings in a chromem-go database, one collection
// per user. Embeddings come from the external Embedder; chromem only does
// the nearest-neighbor search.
type ChromemIndex struct {
	db       *chromem.DB
	embedder ai.Embedder
	logger   *zap.Logger
}

// NewChromemIndex opens (or creates) a persistent chromem database at path.
// An empty path keeps everything in memory, which the tests rely on.
func NewChromemIndex(path string, embedder ai.Embedder, logger *zap.Logger) (*ChromemIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("semantic: embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("semantic: opening chromem db: %w", err)
		}
	}

	return &ChromemIndex{db: db, embedder: embedder, logger: logger}, nil
}

func collectionName(userID string) string {
	return "mem-" + userID
}

func (x *ChromemIndex) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return x.embedder.Embed(ctx, text)
	}
}

func (x *ChromemIndex) collection(userID string) (*chromem.Collection, error) {
	return x.db.GetOrCreateCollection(collectionName(userID), nil, x.embeddingFunc())
}

func (x *ChromemIndex) IndexText(ctx context.Context, userID, text string) error {
	col, err := x.collection(userID)
	if err != nil {
		return fmt.Errorf("semantic: collection for %s: %w", userID, err)
	}

	embedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("semantic: embedding: %w", err)
	}

	doc := chromem.Document{
		ID:        fmt.Sprintf("%s-%d", userID, time.Now().UnixNano()),
		Content:   text,
		Embedding: embedding,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("semantic: adding document: %w", err)
	}

	x.logger.Debug("indexed text", zap.String("user_id", userID))
	return nil
}

func (x *ChromemIndex) Query(ctx context.Context, userID, text string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	col, err := x.collection(userID)
	if err != nil {
		return nil, fmt.Errorf("semantic: collection for %s: %w", userID, err)
	}

	// chromem rejects queries asking for more results than stored documents.
	if n := col.Count(); n < k {
		if n == 0 {
			return nil, nil
		}
		k = n
	}

	results, err := col.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic: query: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{Content: r.Content, Similarity: r.Similarity})
	}
	return hits, nil
}

func (x *ChromemIndex) Wipe(_ context.Context, userID string) error {
	if err := x.db.DeleteCollection(collectionName(userID)); err != nil {
		return fmt.Errorf("semantic: deleting collection for %s: %w", userID, err)
	}
	return nil
}
