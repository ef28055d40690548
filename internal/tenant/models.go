package tenant

import "time"

// Tenant is a configured client identity with its own system prompt.
type Tenant struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ClientCode   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"client_code"`
	Name         string    `gorm:"type:varchar(128);not null" json:"name"`
	SystemPrompt string    `gorm:"type:text;not null" json:"system_prompt"`
	PlanName     string    `gorm:"type:varchar(32)" json:"plan_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// Binding maps a user to at most one tenant. Rebinds overwrite; no history
// is kept.
type Binding struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`
	ClientCode string    `gorm:"type:varchar(64);index;not null" json:"client_code"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Binding) TableName() string { return "user_tenant_bindings" }
