package tenant

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Tenant{}, &Binding{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewRegistry(db, "You are a helpful assistant.")
}

func TestResolve_UnboundGetsDefaultPrompt(t *testing.T) {
	r := openTestRegistry(t)

	res, err := r.Resolve(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Bound {
		t.Fatalf("expected unbound resolution")
	}
	if res.SystemPrompt != "You are a helpful assistant." {
		t.Fatalf("expected default prompt, got %q", res.SystemPrompt)
	}
	if res.ClientCode != "" || res.PlanName != "" {
		t.Fatalf("unexpected tenant fields on unbound resolution: %+v", res)
	}
}

func TestResolve_BoundUserGetsTenantConfig(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	err := r.UpsertTenant(ctx, Tenant{
		ClientCode:   "acme",
		Name:         "Acme",
		SystemPrompt: "You are Acme's assistant.",
		PlanName:     "free",
	})
	if err != nil {
		t.Fatalf("upsert tenant: %v", err)
	}
	if err := r.Bind(ctx, "u1", "acme"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	res, err := r.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Bound {
		t.Fatalf("expected bound resolution")
	}
	if res.ClientCode != "acme" || res.PlanName != "free" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if res.SystemPrompt != "You are Acme's assistant." {
		t.Fatalf("expected tenant prompt, got %q", res.SystemPrompt)
	}
}

func TestBind_RebindOverrides(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	for _, code := range []string{"acme", "globex"} {
		err := r.UpsertTenant(ctx, Tenant{
			ClientCode:   code,
			Name:         code,
			SystemPrompt: "prompt for " + code,
			PlanName:     "free",
		})
		if err != nil {
			t.Fatalf("upsert tenant %s: %v", code, err)
		}
	}

	if err := r.Bind(ctx, "u1", "acme"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := r.Bind(ctx, "u1", "globex"); err != nil {
		t.Fatalf("rebind: %v", err)
	}

	res, err := r.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.ClientCode != "globex" {
		t.Fatalf("expected last bind to win, got %q", res.ClientCode)
	}
}

func TestResolve_DanglingBindingFallsBackToDefault(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.Bind(ctx, "u1", "ghost"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	res, err := r.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Bound {
		t.Fatalf("expected dangling binding to resolve as unbound")
	}
	if res.SystemPrompt != "You are a helpful assistant." {
		t.Fatalf("expected default prompt, got %q", res.SystemPrompt)
	}
}

func TestUpsertTenant_Overwrites(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	base := Tenant{ClientCode: "acme", Name: "Acme", SystemPrompt: "v1", PlanName: "free"}
	if err := r.UpsertTenant(ctx, base); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	base.SystemPrompt = "v2"
	base.PlanName = "pro"
	if err := r.UpsertTenant(ctx, base); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	if err := r.Bind(ctx, "u1", "acme"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	res, err := r.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.SystemPrompt != "v2" || res.PlanName != "pro" {
		t.Fatalf("expected overwritten tenant, got %+v", res)
	}
}
