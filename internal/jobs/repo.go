package jobs

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) GetByUserAndIdempotencyKey(ctx context.Context, userID, key string) (*Job, error) {
	var j Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateOrGetExisting tries to create a job; if (user_id, idempotency_key)
// already exists, it returns the existing job instead. At-least-once
// transports can safely submit the same turn twice.
func (r *Repo) CreateOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

func (r *Repo) MarkRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, StatusQueued).
		Update("status", StatusRunning).Error
}

func (r *Repo) MarkSucceeded(ctx context.Context, id, reply string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": StatusSucceeded,
			"reply":  reply,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": StatusFailed,
			"error":  errMsg,
			"reply":  nil,
		}).Error
}
