package intent

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"weatherbot/app/client/similarity"
	"weatherbot/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

type Intent string

const WeatherCity Intent = "current weather in a city"

// Known lists the intents the bot can act on, each described by the
// phrase it is compared against.
var Known = []Intent{WeatherCity}

type Kind int

const (
	// KindAmbiguous means no intent was similar enough.
	KindAmbiguous Kind = iota
	// KindMatch means Outcome.Intent is a confident match.
	KindMatch
	// KindSuggest means the user should confirm Outcome.Candidates[0].
	KindSuggest
)

type Candidate struct {
	Intent Intent
	Score  int
}

type Outcome struct {
	Kind       Kind
	Intent     Intent
	Candidates []Candidate
}

// Best returns the most likely intent of a suggestion.
func (o Outcome) Best() (Intent, bool) {
	if len(o.Candidates) == 0 {
		return "", false
	}
	return o.Candidates[0].Intent, true
}

type Scorer interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

type Service struct {
	scorer           Scorer
	intents          []Intent
	matchThreshold   int
	suggestThreshold int
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	client := do.MustInvoke[*similarity.Client](di)

	return NewService(client, Known, cfg.Intent.MatchThreshold, cfg.Intent.SuggestThreshold), nil
}

func NewService(scorer Scorer, intents []Intent, matchThreshold, suggestThreshold int) *Service {
	return &Service{
		scorer:           scorer,
		intents:          intents,
		matchThreshold:   matchThreshold,
		suggestThreshold: suggestThreshold,
	}
}

// Parse scores text against every known intent in order. The first intent
// reaching the match threshold wins; otherwise intents above the suggest
// threshold become candidates, best first.
func (s *Service) Parse(ctx context.Context, text string) (Outcome, error) {
	var candidates []Candidate

	for _, intent := range s.intents {
		similarity, err := s.scorer.Similarity(ctx, text, string(intent))
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to score intent %q: %w", intent, err)
		}

		score := int(math.RoundToEven(similarity * 100))
		slog.Debug("Scored intent",
			"intent", intent,
			"score", score,
		)

		if score >= s.matchThreshold {
			return Outcome{Kind: KindMatch, Intent: intent}, nil
		}

		if score >= s.suggestThreshold {
			candidates = append(candidates, Candidate{Intent: intent, Score: score})
		}
	}

	if len(candidates) == 0 {
		return Outcome{Kind: KindAmbiguous}, nil
	}

	candidates = pie.SortStableUsing(candidates, func(a, b Candidate) bool {
		return a.Score > b.Score
	})

	return Outcome{Kind: KindSuggest, Candidates: candidates}, nil
}

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindSuggest:
		return "suggest"
	default:
		return "ambiguous"
	}
}
