package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/vinkalabs/membot/internal/semantic"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type recordingIndex struct {
	indexed []string
	wiped   []string
	err     error
}

func (x *recordingIndex) IndexText(_ context.Context, _ string, text string) error {
	if x.err != nil {
		return x.err
	}
	x.indexed = append(x.indexed, text)
	return nil
}

func (x *recordingIndex) Query(context.Context, string, string, int) ([]semantic.Hit, error) {
	return nil, nil
}

func (x *recordingIndex) Wipe(_ context.Context, userID string) error {
	x.wiped = append(x.wiped, userID)
	return nil
}

func newTestManager(t *testing.T, index semantic.Index) *Manager {
	t.Helper()
	return NewManager(NewRepo(openTestDB(t)), NewHeuristicScorer(nil), index, 4, nil)
}

func TestRetrieve_ImportantFactOutranksRecentFiller(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		if _, err := m.Commit(ctx, "u1", RoleUser, fmt.Sprintf("filler %d", i)); err != nil {
			t.Fatalf("commit filler: %v", err)
		}
	}
	if _, err := m.Commit(ctx, "u1", RoleUser, "My name is Ana"); err != nil {
		t.Fatalf("commit name: %v", err)
	}
	for i := 9; i < 18; i++ {
		if _, err := m.Commit(ctx, "u1", RoleUser, fmt.Sprintf("filler %d", i)); err != nil {
			t.Fatalf("commit filler: %v", err)
		}
	}

	entries, err := m.Retrieve(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	if entries[0].Content != "My name is Ana" {
		t.Fatalf("expected name fact first, got %q", entries[0].Content)
	}
}

func TestRetrieve_TiesBrokenByRecency(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Commit(ctx, "u1", RoleUser, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	entries, err := m.Retrieve(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if entries[0].Content != "msg 2" || entries[2].Content != "msg 0" {
		t.Fatalf("expected newest first among ties, got %q .. %q", entries[0].Content, entries[2].Content)
	}
}

func TestRetrieve_EmptyHistory(t *testing.T) {
	m := newTestManager(t, nil)

	entries, err := m.Retrieve(context.Background(), "nobody", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty result, got %d entries", len(entries))
	}
}

func TestRetrieve_LimitClamped(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if _, err := m.Commit(ctx, "u1", RoleUser, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	entries, err := m.Retrieve(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(entries) != MaxRetrieveLimit {
		t.Fatalf("expected %d entries, got %d", MaxRetrieveLimit, len(entries))
	}

	entries, err = m.Retrieve(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected clamp to 1 entry, got %d", len(entries))
	}
}

func TestCommit_IndexesImportantUserTurns(t *testing.T) {
	idx := &recordingIndex{}
	m := newTestManager(t, idx)
	ctx := context.Background()

	if _, err := m.Commit(ctx, "u1", RoleUser, "My name is Ana"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := m.Commit(ctx, "u1", RoleUser, "hello there"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := m.Commit(ctx, "u1", RoleAssistant, "My name is Bot, I am called Bot"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if len(idx.indexed) != 1 || idx.indexed[0] != "My name is Ana" {
		t.Fatalf("expected only the name fact indexed, got %v", idx.indexed)
	}
}

func TestCommit_IndexFailureDoesNotFailCommit(t *testing.T) {
	idx := &recordingIndex{err: errors.New("embedding service down")}
	m := newTestManager(t, idx)

	entry, err := m.Commit(context.Background(), "u1", RoleUser, "My name is Ana")
	if err != nil {
		t.Fatalf("commit should absorb index failure: %v", err)
	}
	if entry.Importance != IdentityScore {
		t.Fatalf("unexpected importance %v", entry.Importance)
	}
}

func TestReset_ClearsHistoryAndVectors(t *testing.T) {
	idx := &recordingIndex{}
	m := newTestManager(t, idx)
	ctx := context.Background()

	if _, err := m.Commit(ctx, "u1", RoleUser, "My name is Ana"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := m.Reset(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	entries, err := m.Retrieve(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty history after reset, got %d", len(entries))
	}
	if len(idx.wiped) != 1 || idx.wiped[0] != "u1" {
		t.Fatalf("expected vector wipe for u1, got %v", idx.wiped)
	}
}
