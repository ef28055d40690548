package tenant

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolution is what a single message handler needs from the registry.
type Resolution struct {
	ClientCode   string
	SystemPrompt string
	PlanName     string
	Bound        bool
}

// Registry resolves users to tenant configuration. Resolution runs on every
// message, so both lookups are single indexed reads.
type Registry struct {
	db            *gorm.DB
	defaultPrompt string
}

func NewRegistry(db *gorm.DB, defaultPrompt string) *Registry {
	return &Registry{db: db, defaultPrompt: defaultPrompt}
}

// Resolve returns the bound tenant's configuration, or the default system
// prompt when the user is unbound or the bound tenant no longer exists.
func (r *Registry) Resolve(ctx context.Context, userID string) (Resolution, error) {
	var binding Binding
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&binding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Resolution{SystemPrompt: r.defaultPrompt}, nil
		}
		return Resolution{}, err
	}

	var t Tenant
	err = r.db.WithContext(ctx).
		Where("client_code = ?", binding.ClientCode).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Resolution{SystemPrompt: r.defaultPrompt}, nil
		}
		return Resolution{}, err
	}

	return Resolution{
		ClientCode:   t.ClientCode,
		SystemPrompt: t.SystemPrompt,
		PlanName:     t.PlanName,
		Bound:        true,
	}, nil
}

// Bind upserts the user's binding; the last bind wins.
func (r *Registry) Bind(ctx context.Context, userID, clientCode string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"client_code": clientCode,
				"updated_at":  time.Now().UTC(),
			}),
		}).
		Create(&Binding{UserID: userID, ClientCode: clientCode, UpdatedAt: time.Now().UTC()}).Error
}

// UpsertTenant creates or overwrites a tenant keyed by client code.
func (r *Registry) UpsertTenant(ctx context.Context, t Tenant) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "client_code"}},
			DoUpdates: clause.Assignments(map[string]any{
				"name":          t.Name,
				"system_prompt": t.SystemPrompt,
				"plan_name":     t.PlanName,
				"updated_at":    time.Now().UTC(),
			}),
		}).
		Create(&t).Error
}
