package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"cptracker-backend/lib/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	entities []model.Entity
	err      error
}

func (s staticLister) List(context.Context) ([]model.Entity, error) {
	return s.entities, s.err
}

var updated = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func profile(source model.SourceKind, rating, solved, contests int) model.Profile {
	return model.Profile{
		Source:      source,
		Rating:      rating,
		Solved:      solved,
		Contests:    contests,
		LastUpdated: updated,
	}
}

func entity(id string, profiles ...model.Profile) model.Entity {
	e := model.Entity{ID: id, Name: "name " + id, Profiles: map[model.SourceKind]model.Profile{}}
	for _, p := range profiles {
		e.Profiles[p.Source] = p
	}
	return e
}

// a single rated source scores its rating
func TestScoreSingleSource(t *testing.T) {
	engine := NewEngine(staticLister{}, Config{
		model.Codeforces: {Rating: 1},
		model.LeetCode:   {Rating: 1},
	})
	require.Equal(t, 1500.0, engine.Score(entity("a", profile(model.Codeforces, 1500, 0, 0))))
	require.Equal(t, 0.0, engine.Score(entity("b")))
}

func TestScoreWeights(t *testing.T) {
	engine := NewEngine(staticLister{}, Config{
		model.Codeforces: {Rating: 1, Solved: 0.5, Contests: 2},
		model.Gfg:        {Solved: 1},
	})

	score := engine.Score(entity(
		"a",
		profile(model.Codeforces, 1000, 100, 10),
		profile(model.Gfg, 0, 40, 0),
		// no weights for atcoder
		profile(model.AtCoder, 2000, 0, 30),
	))
	require.Equal(t, 1000+50+20+40.0, score)
}

func TestLeaderboardOrderAndTies(t *testing.T) {
	engine := NewEngine(staticLister{entities: []model.Entity{
		entity("c", profile(model.Codeforces, 1200, 0, 0)),
		entity("b", profile(model.Codeforces, 1500, 0, 0)),
		entity("a", profile(model.Codeforces, 1200, 0, 0)),
		entity("d"),
	}}, Config{model.Codeforces: {Rating: 1}})

	standings, err := engine.Leaderboard(context.Background())
	require.NoError(t, err)

	type row struct {
		Rank  int
		ID    string
		Score float64
	}
	var got []row
	for _, s := range standings {
		got = append(got, row{Rank: s.Rank, ID: s.ID, Score: s.Score})
	}
	expect := []row{
		{Rank: 1, ID: "b", Score: 1500},
		{Rank: 2, ID: "a", Score: 1200},
		{Rank: 2, ID: "c", Score: 1200},
		{Rank: 3, ID: "d", Score: 0},
	}
	require.Empty(t, cmp.Diff(expect, got))

	// a second call over the same data gives the same order
	again, err := engine.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(standings, again))
}

func TestLeaderboardFilter(t *testing.T) {
	engine := NewEngine(staticLister{entities: []model.Entity{
		entity("a", profile(model.Codeforces, 1500, 0, 0), profile(model.LeetCode, 2000, 0, 0)),
		entity("b", profile(model.LeetCode, 2100, 0, 0)),
		entity("c", profile(model.AtCoder, 800, 0, 0)),
	}}, DefaultConfig())

	standings, err := engine.Leaderboard(context.Background(), model.Codeforces)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	require.Equal(t, "a", standings[0].ID)
	require.Equal(t, 1500.0, standings[0].Score)
	require.Empty(t, cmp.Diff(map[model.SourceKind]float64{model.Codeforces: 1500}, standings[0].Breakdown))

	standings, err = engine.Leaderboard(context.Background(), model.LeetCode, model.AtCoder)
	require.NoError(t, err)
	ids := []string{}
	for _, s := range standings {
		ids = append(ids, s.ID)
	}
	require.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestLeaderboardListError(t *testing.T) {
	engine := NewEngine(staticLister{err: errors.New("db down")}, nil)
	_, err := engine.Leaderboard(context.Background())
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.Error(t, Config{"topcoder": {Rating: 1}}.Validate())
	require.Error(t, Config{model.Gfg: {Solved: -1}}.Validate())
}

func TestLeaderboardFractionalWeightsDeterministic(t *testing.T) {
	engine := NewEngine(staticLister{entities: []model.Entity{
		entity(
			"a",
			profile(model.Codeforces, 0, 1, 0),
			profile(model.LeetCode, 0, 1, 0),
			profile(model.AtCoder, 0, 1, 0),
		),
		entity("b", profile(model.Gfg, 0, 1, 0)),
	}}, Config{
		model.Codeforces: {Solved: 0.1},
		model.LeetCode:   {Solved: 0.2},
		model.AtCoder:    {Solved: 0.3},
		model.Gfg:        {Solved: 0.6},
	})

	a := entity(
		"a",
		profile(model.Codeforces, 0, 1, 0),
		profile(model.LeetCode, 0, 1, 0),
		profile(model.AtCoder, 0, 1, 0),
	)
	want := engine.Score(a)
	for i := 0; i < 200; i++ {
		require.Equal(t, want, engine.Score(a))
	}

	first, err := engine.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	for i := 0; i < 200; i++ {
		standings, err := engine.Leaderboard(context.Background())
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(first, standings))
	}
}
