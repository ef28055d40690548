package memory

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Entry is one immutable stored turn of dialogue. Entries are append-only;
// they are never edited, only deleted in bulk by Reset.
type Entry struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"type:varchar(64);not null;index:idx_mem_user_rank,priority:1" json:"-"`
	Role       string    `gorm:"type:varchar(16);not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Importance float64   `gorm:"not null;default:1;index:idx_mem_user_rank,priority:2" json:"importance"`
	CreatedAt  time.Time `gorm:"index:idx_mem_user_rank,priority:3" json:"created_at"`
}

func (Entry) TableName() string { return "memory_entries" }
