package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/vinkalabs/membot/internal/ai"
)

func TestHeuristicScorer_Tiers(t *testing.T) {
	s := NewHeuristicScorer(nil)

	cases := []struct {
		text string
		want float64
	}{
		{"My name is Ana", IdentityScore},
		{"you can CALL ME Ana", IdentityScore},
		{"I like green tea", PreferenceScore},
		{"my favourite color is blue", PreferenceScore},
		{"what is the weather today", BaselineScore},
		{"", BaselineScore},
	}
	for _, tc := range cases {
		if got := s.Score(context.Background(), tc.text); got != tc.want {
			t.Fatalf("Score(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestHeuristicScorer_FirstMatchWins(t *testing.T) {
	s := NewHeuristicScorer(nil)
	// Contains both an identity and a preference phrase; identity tier is
	// tested first.
	if got := s.Score(context.Background(), "my name is Ana and I like tea"); got != IdentityScore {
		t.Fatalf("Score = %v, want %v", got, IdentityScore)
	}
}

type scriptedProvider struct {
	reply string
	err   error
	calls int
}

func (p *scriptedProvider) Chat(_ context.Context, _ []ai.Message) (string, error) {
	p.calls++
	return p.reply, p.err
}

func TestModelScorer_UpgradesBaseline(t *testing.T) {
	prov := &scriptedProvider{reply: "YES"}
	s := NewModelScorer(NewHeuristicScorer(nil), prov, 4, nil)

	if got := s.Score(context.Background(), "remember I work night shifts"); got != 4 {
		t.Fatalf("Score = %v, want 4", got)
	}
	if prov.calls != 1 {
		t.Fatalf("expected one provider call, got %d", prov.calls)
	}
}

func TestModelScorer_HeuristicMatchSkipsModel(t *testing.T) {
	prov := &scriptedProvider{reply: "NO"}
	s := NewModelScorer(NewHeuristicScorer(nil), prov, 4, nil)

	if got := s.Score(context.Background(), "my name is Ana"); got != IdentityScore {
		t.Fatalf("Score = %v, want %v", got, IdentityScore)
	}
	if prov.calls != 0 {
		t.Fatalf("expected no provider call, got %d", prov.calls)
	}
}

func TestModelScorer_FailureDegradesToBaseline(t *testing.T) {
	prov := &scriptedProvider{err: errors.New("timeout")}
	s := NewModelScorer(NewHeuristicScorer(nil), prov, 4, nil)

	if got := s.Score(context.Background(), "remember this"); got != BaselineScore {
		t.Fatalf("Score = %v, want baseline %v", got, BaselineScore)
	}
}

func TestModelScorer_NoAnswerStaysBaseline(t *testing.T) {
	prov := &scriptedProvider{reply: "I cannot decide"}
	s := NewModelScorer(NewHeuristicScorer(nil), prov, 4, nil)

	if got := s.Score(context.Background(), "just chatting"); got != BaselineScore {
		t.Fatalf("Score = %v, want baseline %v", got, BaselineScore)
	}
}
