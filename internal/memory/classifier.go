package memory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/ai"
)

const (
	BaselineScore   = 1.0
	PreferenceScore = 3.0
	IdentityScore   = 5.0
)

// Scorer maps a message's text to an importance score. Implementations must
// be deterministic and side-effect free.
type Scorer interface {
	Score(ctx context.Context, text string) float64
}

// Rule is one tier of the heuristic phrase table: if any phrase matches
// (case-insensitive substring), the rule's score applies. Rules are tested
// in order; the first match wins.
type Rule struct {
	Phrases []string
	Score   float64
}

// DefaultRules covers identity statements (highest tier) and preference
// statements (mid tier). Everything else scores baseline.
var DefaultRules = []Rule{
	{
		Phrases: []string{
			"my name is", "i am called", "call me", "i'm called",
			"zovem se", "ja sam",
		},
		Score: IdentityScore,
	},
	{
		Phrases: []string{
			"i like", "i love", "i prefer", "i hate", "my favorite", "my favourite",
			"volim", "ne volim",
		},
		Score: PreferenceScore,
	},
}

type HeuristicScorer struct {
	rules []Rule
}

func NewHeuristicScorer(rules []Rule) *HeuristicScorer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &HeuristicScorer{rules: rules}
}

func (s *HeuristicScorer) Score(_ context.Context, text string) float64 {
	lowered := strings.ToLower(text)
	for _, rule := range s.rules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(lowered, phrase) {
				return rule.Score
			}
		}
	}
	return BaselineScore
}

const storeDecisionPrompt = "You decide whether a chat message contains a personal fact worth " +
	"remembering long-term (a name, preference, or other durable detail about the user). " +
	"Answer with exactly one word: YES or NO."

// ModelScorer upgrades baseline-scored messages to the long-term threshold
// when the completion provider judges them worth storing. The heuristic
// score is never downgraded, and any provider failure degrades the decision
// to "not important".
type ModelScorer struct {
	heuristic *HeuristicScorer
	provider  ai.Provider
	threshold float64
	logger    *zap.Logger
}

func NewModelScorer(heuristic *HeuristicScorer, provider ai.Provider, threshold float64, logger *zap.Logger) *ModelScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelScorer{heuristic: heuristic, provider: provider, threshold: threshold, logger: logger}
}

func (s *ModelScorer) Score(ctx context.Context, text string) float64 {
	score := s.heuristic.Score(ctx, text)
	if score > BaselineScore {
		return score
	}

	reply, err := s.provider.Chat(ctx, []ai.Message{
		{Role: RoleSystem, Content: storeDecisionPrompt},
		{Role: RoleUser, Content: text},
	})
	if err != nil {
		s.logger.Debug("store decision failed, keeping baseline", zap.Error(err))
		return score
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(reply)), "YES") {
		return s.threshold
	}
	return score
}
