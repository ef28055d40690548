package quota

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/vinkalabs/membot/internal/tenant"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Counter{}, &Plan{}, &tenant.Tenant{}, &tenant.Binding{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := SeedPlans(db); err != nil {
		t.Fatalf("seed plans: %v", err)
	}
	return db
}

func newTestEnforcer(t *testing.T, db *gorm.DB, kind PeriodKind, defaultLimit int) *Enforcer {
	t.Helper()
	tenants := tenant.NewRegistry(db, "default prompt")
	return NewEnforcer(NewRepo(db), tenants, kind, defaultLimit, nil)
}

func bindToFreeTenant(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	tenants := tenant.NewRegistry(db, "default prompt")
	ctx := context.Background()
	err := tenants.UpsertTenant(ctx, tenant.Tenant{
		ClientCode:   "acme",
		Name:         "Acme",
		SystemPrompt: "You are Acme's assistant.",
		PlanName:     "free",
	})
	if err != nil {
		t.Fatalf("upsert tenant: %v", err)
	}
	if err := tenants.Bind(ctx, userID, "acme"); err != nil {
		t.Fatalf("bind: %v", err)
	}
}

func TestAdmit_AtLimitBoundary(t *testing.T) {
	db := openTestDB(t)
	e := newTestEnforcer(t, db, PeriodMonth, 0)
	bindToFreeTenant(t, db, "u1")
	ctx := context.Background()

	// 29 of 30 used: still admitted.
	for i := 0; i < 29; i++ {
		if err := e.CommitUsage(ctx, "tenant:acme"); err != nil {
			t.Fatalf("commit usage: %v", err)
		}
	}
	d, err := e.Admit(ctx, "u1")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected admit at 29/30, got denied")
	}
	if d.SubjectID != "tenant:acme" {
		t.Fatalf("expected tenant subject, got %q", d.SubjectID)
	}

	if err := e.CommitUsage(ctx, d.SubjectID); err != nil {
		t.Fatalf("commit usage: %v", err)
	}
	d, err = e.Admit(ctx, "u1")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected denial at 30/30")
	}
}

func TestAdmit_NeverMutatesCounter(t *testing.T) {
	db := openTestDB(t)
	e := newTestEnforcer(t, db, PeriodMonth, 0)
	bindToFreeTenant(t, db, "u1")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := e.Admit(ctx, "u1"); err != nil {
			t.Fatalf("admit: %v", err)
		}
	}

	c, err := NewRepo(db).GetCounter(ctx, "tenant:acme")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if c != nil {
		t.Fatalf("admit must not create or mutate counters, found %+v", c)
	}
}

func TestAdmit_LazyPeriodRollover(t *testing.T) {
	db := openTestDB(t)
	e := newTestEnforcer(t, db, PeriodDay, 0)
	bindToFreeTenant(t, db, "u1")
	ctx := context.Background()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	e.SetClock(func() time.Time { return yesterday })
	for i := 0; i < 30; i++ {
		if err := e.CommitUsage(ctx, "tenant:acme"); err != nil {
			t.Fatalf("commit usage: %v", err)
		}
	}
	if d, _ := e.Admit(ctx, "u1"); d.Allowed {
		t.Fatalf("expected denial at yesterday's limit")
	}

	// The period key changed; the stale counter reads as zero before any
	// explicit reset.
	e.SetClock(time.Now)
	d, err := e.Admit(ctx, "u1")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected admit after period rollover")
	}
	if d.Used != 0 {
		t.Fatalf("expected stale counter to read as zero, got %d", d.Used)
	}

	// The first write of the new period advances the key and restarts at 1.
	if err := e.CommitUsage(ctx, "tenant:acme"); err != nil {
		t.Fatalf("commit usage: %v", err)
	}
	c, err := NewRepo(db).GetCounter(ctx, "tenant:acme")
	if err != nil || c == nil {
		t.Fatalf("get counter: %v", err)
	}
	if c.MessagesUsed != 1 {
		t.Fatalf("expected count restarted at 1, got %d", c.MessagesUsed)
	}
	if c.Period != PeriodKey(PeriodDay, time.Now()) {
		t.Fatalf("expected period advanced, got %q", c.Period)
	}
}

func TestAdmit_UnboundSubjectIsOpen(t *testing.T) {
	db := openTestDB(t)
	e := newTestEnforcer(t, db, PeriodMonth, 0)
	ctx := context.Background()

	d, err := e.Admit(ctx, "stranger")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected unbound subject admitted in open system")
	}
	if d.SubjectID != "user:stranger" {
		t.Fatalf("expected user-level subject, got %q", d.SubjectID)
	}
}

func TestAdmit_GlobalDefaultLimitAppliesToUnbound(t *testing.T) {
	db := openTestDB(t)
	e := newTestEnforcer(t, db, PeriodMonth, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := e.CommitUsage(ctx, "user:stranger"); err != nil {
			t.Fatalf("commit usage: %v", err)
		}
	}
	d, err := e.Admit(ctx, "stranger")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected denial once global default limit is reached")
	}
}

func TestAdmit_ProOverrideBypassesLimit(t *testing.T) {
	db := openTestDB(t)
	e := newTestEnforcer(t, db, PeriodMonth, 0)
	bindToFreeTenant(t, db, "u1")
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		if err := e.CommitUsage(ctx, "tenant:acme"); err != nil {
			t.Fatalf("commit usage: %v", err)
		}
	}
	if d, _ := e.Admit(ctx, "u1"); d.Allowed {
		t.Fatalf("expected denial past the limit")
	}

	if err := e.SetPro(ctx, "tenant:acme", true); err != nil {
		t.Fatalf("set pro: %v", err)
	}
	d, err := e.Admit(ctx, "u1")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected pro override to bypass the limit")
	}
}
