package quota

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetCounter returns the subject's counter row, or (nil, nil) when the
// subject has never been charged.
func (r *Repo) GetCounter(ctx context.Context, subjectID string) (*Counter, error) {
	var c Counter
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// IncrementUsage charges delta messages against the subject for the given
// period in one atomic upsert. A stale stored period resets the count to
// delta and advances the period key. The assignments are ordered so that
// messages_used is computed against the old period value.
func (r *Repo) IncrementUsage(ctx context.Context, subjectID, period string, delta int64) (int64, error) {
	row := Counter{
		SubjectID:    subjectID,
		Period:       period,
		MessagesUsed: delta,
		UpdatedAt:    time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "subject_id"}},
			DoUpdates: clause.Set{
				{
					Column: clause.Column{Name: "messages_used"},
					Value:  gorm.Expr("CASE WHEN period = ? THEN messages_used + ? ELSE ? END", period, delta, delta),
				},
				{Column: clause.Column{Name: "period"}, Value: period},
				{Column: clause.Column{Name: "updated_at"}, Value: time.Now().UTC()},
			},
		}).
		Create(&row).Error
	if err != nil {
		return 0, err
	}

	// Read-back is informational only; the increment above is the atomic step.
	c, err := r.GetCounter(ctx, subjectID)
	if err != nil || c == nil {
		return 0, err
	}
	return c.MessagesUsed, nil
}

// SetPro flips the unconditional plan override for a subject, creating the
// counter row if needed.
func (r *Repo) SetPro(ctx context.Context, subjectID, period string, pro bool) error {
	row := Counter{
		SubjectID: subjectID,
		Period:    period,
		IsPro:     pro,
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "subject_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"is_pro":     pro,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&row).Error
}

func (r *Repo) GetPlan(ctx context.Context, name string) (*Plan, error) {
	var p Plan
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
