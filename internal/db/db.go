package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/vinkalabs/membot/internal/jobs"
	"github.com/vinkalabs/membot/internal/memory"
	"github.com/vinkalabs/membot/internal/quota"
	"github.com/vinkalabs/membot/internal/tenant"
)

// Open connects to the configured database. MySQL for production,
// sqlite for local runs and tests.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}
}

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	if err := gdb.AutoMigrate(
		&memory.Entry{},
		&tenant.Tenant{},
		&tenant.Binding{},
		&quota.Counter{},
		&quota.Plan{},
		&jobs.Job{},
	); err != nil {
		return err
	}
	return quota.SeedPlans(gdb)
}
