package memory

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Append(ctx context.Context, e *Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ListRanked returns up to limit entries ordered by importance DESC, then
// recency DESC. Ties beyond the timestamp fall back to insertion order.
func (r *Repo) ListRanked(ctx context.Context, userID string, limit int) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("importance DESC").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Repo) DeleteAll(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&Entry{}).Error
}
