// Package semantic provides nearest-neighbor recall over embedded message
// texts, scoped per user. It is a best-effort companion to the ranked
// memory window: callers treat every failure as "no recall".
package semantic

import "context"

// Hit is one nearest-neighbor match for a query.
type Hit struct {
	Content    string
	Similarity float32
}

type Index interface {
	// IndexText embeds text and stores the vector under the user's scope.
	IndexText(ctx context.Context, userID, text string) error
	// Query returns up to k prior texts most similar to text.
	Query(ctx context.Context, userID, text string, k int) ([]Hit, error)
	// Wipe removes all vectors stored for the user.
	Wipe(ctx context.Context, userID string) error
}

// NoopIndex backs the disabled configuration.
type NoopIndex struct{}

func (NoopIndex) IndexText(context.Context, string, string) error { return nil }

func (NoopIndex) Query(context.Context, string, string, int) ([]Hit, error) { return nil, nil }

func (NoopIndex) Wipe(context.Context, string) error { return nil }
