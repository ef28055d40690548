package quota

import (
	"time"

	"gorm.io/gorm"
)

// Counter tracks message usage for one subject (a user or a tenant). A
// single row per subject carries the current period key; stale periods are
// treated as zero usage at read time and the key advances on the next
// write.
type Counter struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SubjectID    string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"subject_id"`
	Period       string    `gorm:"type:varchar(16);not null" json:"period"`
	MessagesUsed int64     `gorm:"not null;default:0" json:"messages_used"`
	IsPro        bool      `gorm:"not null;default:false" json:"is_pro"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Counter) TableName() string { return "usage_counters" }

// Plan is static reference data.
type Plan struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	Name         string `gorm:"type:varchar(32);uniqueIndex;not null" json:"name"`
	MessageLimit int    `gorm:"not null" json:"message_limit"`
	PriceCents   int    `gorm:"not null" json:"price_cents"`
}

func (Plan) TableName() string { return "plans" }

// SeedPlans inserts the reference plans if they are missing.
func SeedPlans(db *gorm.DB) error {
	plans := []Plan{
		{Name: "free", MessageLimit: 30, PriceCents: 0},
		{Name: "pro", MessageLimit: 10000, PriceCents: 900},
	}
	for _, p := range plans {
		var cnt int64
		if err := db.Model(&Plan{}).Where("name = ?", p.Name).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt == 0 {
			if err := db.Create(&p).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
