// Package ranking scores entities from their stored profiles and orders
// them into a leaderboard. It only reads, it never triggers a refresh.
package ranking

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"cptracker-backend/lib/assert"
	"cptracker-backend/lib/model"
)

// Weights multiply one source's base profile fields.
type Weights struct {
	Rating   float64 `json:"rating"`
	Solved   float64 `json:"solved"`
	Contests float64 `json:"contests"`
}

// Config maps a source to its weights, sources without an entry score 0.
type Config map[model.SourceKind]Weights

func (c Config) Validate() error {
	for source, w := range c {
		if !source.Valid() {
			return fmt.Errorf("weights given for unknown source '%s'", source)
		}
		if w.Rating < 0 || w.Solved < 0 || w.Contests < 0 {
			return fmt.Errorf("weights for %s must not be negative", source)
		}
	}
	return nil
}

// DefaultConfig weighs rating only, equally across sources.
func DefaultConfig() Config {
	config := Config{}
	for _, source := range model.Sources {
		config[source] = Weights{Rating: 1}
	}
	return config
}

type Standing struct {
	// Rank is dense and 1-based, equal scores share a rank.
	Rank  int
	ID    string
	Name  string
	Score float64

	// Breakdown is the contribution of every present source.
	Breakdown map[model.SourceKind]float64
}

type Lister interface {
	List(ctx context.Context) ([]model.Entity, error)
}

type Engine struct {
	store   Lister
	weights Config
}

func NewEngine(store Lister, weights Config) Engine {
	assert.NotNil(store, "store")
	if weights == nil {
		weights = DefaultConfig()
	}
	return Engine{store: store, weights: weights}
}

func (e Engine) contribution(profile model.Profile) float64 {
	w, ok := e.weights[profile.Source]
	if !ok {
		return 0
	}
	return float64(profile.Rating)*w.Rating +
		float64(profile.Solved)*w.Solved +
		float64(profile.Contests)*w.Contests
}

func (e Engine) Score(entity model.Entity) float64 {
	score, _ := e.score(entity, nil)
	return score
}

// score sums over the present profiles in `only`, every source when it is
// empty. The breakdown is empty when the entity has none of them. Sources
// are added in model.Sources order so fractional weights always produce
// the same float.
func (e Engine) score(entity model.Entity, only []model.SourceKind) (total float64, breakdown map[model.SourceKind]float64) {
	breakdown = map[model.SourceKind]float64{}
	for _, source := range model.Sources {
		if len(only) > 0 && !slices.Contains(only, source) {
			continue
		}
		profile, ok := entity.Profiles[source]
		if !ok {
			continue
		}
		value := e.contribution(profile)
		breakdown[source] = value
		total += value
	}
	return total, breakdown
}

// Leaderboard ranks every entity, or with a filter only the given sources
// and only entities that have a profile for at least one of them.
func (e Engine) Leaderboard(ctx context.Context, filter ...model.SourceKind) ([]Standing, error) {
	entities, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	standings := make([]Standing, 0, len(entities))
	for _, entity := range entities {
		score, breakdown := e.score(entity, filter)
		if len(filter) > 0 && len(breakdown) == 0 {
			continue
		}
		standings = append(standings, Standing{
			ID:        entity.ID,
			Name:      entity.Name,
			Score:     score,
			Breakdown: breakdown,
		})
	}

	slices.SortFunc(standings, func(a, b Standing) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	rank := 0
	for i := range standings {
		if i == 0 || standings[i].Score != standings[i-1].Score {
			rank++
		}
		standings[i].Rank = rank
	}
	return standings, nil
}
