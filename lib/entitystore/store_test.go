package entitystore

import (
	"context"
	"testing"
	"time"

	"cptracker-backend/lib/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func alice() model.Entity {
	return model.Entity{
		ID:   "21CS001",
		Name: "Alice",
		Handles: map[model.SourceKind]string{
			model.Codeforces: "alice_cf",
		},
		ProfileURLs: map[model.SourceKind]string{
			model.AtCoder: "https://atcoder.jp/users/alice_ac",
		},
	}
}

func profile(source model.SourceKind, rating int, extra model.Extension) model.Profile {
	return model.Profile{
		Source:      source,
		Rating:      rating,
		MaxRating:   rating + 100,
		Solved:      10,
		Contests:    2,
		LastUpdated: t0,
		Extra:       extra,
	}
}

// runStoreSuite exercises the Store contract, both drivers must pass it.
func runStoreSuite(t *testing.T, newStore func(t *testing.T, errorLogLimit int) Store) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		store := newStore(t, 10)
		require.NoError(t, store.Create(ctx, alice()))

		found, err := store.FindByKey(ctx, "21CS001")
		require.NoError(t, err)
		expected := alice()
		expected.Profiles = map[model.SourceKind]model.Profile{}
		require.Empty(t, cmp.Diff(expected, found))
		require.True(t, found.LastRefreshedAt.IsZero())

		err = store.Create(ctx, alice())
		require.ErrorIs(t, err, model.ErrPersistence)
	})

	t.Run("missing entity", func(t *testing.T) {
		store := newStore(t, 10)

		_, err := store.FindByKey(ctx, "nobody")
		require.ErrorIs(t, err, ErrEntityNotFound)
		require.ErrorIs(t, err, model.ErrPersistence)

		err = store.ApplyRefresh(ctx, "nobody", Refresh{RefreshedAt: t0})
		require.ErrorIs(t, err, ErrEntityNotFound)
		require.ErrorIs(t, store.Delete(ctx, "nobody"), ErrEntityNotFound)
		require.ErrorIs(t, store.SetHandle(ctx, "nobody", model.Gfg, "x"), ErrEntityNotFound)
	})

	t.Run("apply refresh merges", func(t *testing.T) {
		store := newStore(t, 10)
		require.NoError(t, store.Create(ctx, alice()))

		leetcode := profile(model.LeetCode, 1700, model.LeetCodeExtra{Easy: 5, Badges: []string{"b"}})
		require.NoError(t, store.UpsertProfile(ctx, "21CS001", model.LeetCode, leetcode))

		codeforces := profile(model.Codeforces, 1500, model.CodeforcesExtra{Rank: "specialist"})
		failure := model.ErrorLogEntry{
			Source:  model.Gfg,
			Kind:    model.KindTransient,
			Message: "timeout",
			Time:    t0,
		}
		refreshedAt := t0.Add(time.Hour)
		err := store.ApplyRefresh(ctx, "21CS001", Refresh{
			Profiles:    map[model.SourceKind]model.Profile{model.Codeforces: codeforces},
			Failures:    []model.ErrorLogEntry{failure},
			RefreshedAt: refreshedAt,
		})
		require.NoError(t, err)

		found, err := store.FindByKey(ctx, "21CS001")
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(map[model.SourceKind]model.Profile{
			model.LeetCode:   leetcode,
			model.Codeforces: codeforces,
		}, found.Profiles))
		require.Empty(t, cmp.Diff([]model.ErrorLogEntry{failure}, found.Errors))
		require.True(t, refreshedAt.Equal(found.LastRefreshedAt))
	})

	t.Run("profile replaced whole", func(t *testing.T) {
		store := newStore(t, 10)
		require.NoError(t, store.Create(ctx, alice()))

		first := profile(model.LeetCode, 1700, model.LeetCodeExtra{Easy: 5, Badges: []string{"b"}})
		second := profile(model.LeetCode, 1750, model.LeetCodeExtra{Hard: 1})
		require.NoError(t, store.UpsertProfile(ctx, "21CS001", model.LeetCode, first))
		require.NoError(t, store.UpsertProfile(ctx, "21CS001", model.LeetCode, second))

		found, err := store.FindByKey(ctx, "21CS001")
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(second, found.Profiles[model.LeetCode]))
	})

	t.Run("invalid profile is rejected", func(t *testing.T) {
		store := newStore(t, 10)
		require.NoError(t, store.Create(ctx, alice()))

		bad := profile(model.AtCoder, 1200, model.GfgExtra{})
		err := store.ApplyRefresh(ctx, "21CS001", Refresh{
			Profiles:    map[model.SourceKind]model.Profile{model.AtCoder: bad},
			RefreshedAt: t0,
		})
		require.ErrorIs(t, err, model.ErrPersistence)

		found, err := store.FindByKey(ctx, "21CS001")
		require.NoError(t, err)
		require.Empty(t, found.Profiles)
		require.True(t, found.LastRefreshedAt.IsZero())
	})

	t.Run("error log is capped", func(t *testing.T) {
		store := newStore(t, 3)
		require.NoError(t, store.Create(ctx, alice()))

		for i := 0; i < 5; i++ {
			err := store.AppendError(ctx, "21CS001", model.ErrorLogEntry{
				Source:  model.AtCoder,
				Kind:    model.KindParse,
				Message: string(rune('a' + i)),
				Time:    t0.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}

		found, err := store.FindByKey(ctx, "21CS001")
		require.NoError(t, err)
		var messages []string
		for _, e := range found.Errors {
			messages = append(messages, e.Message)
		}
		require.Equal(t, []string{"c", "d", "e"}, messages)
	})

	t.Run("admin operations", func(t *testing.T) {
		store := newStore(t, 10)
		require.NoError(t, store.Create(ctx, alice()))
		require.NoError(t, store.Create(ctx, model.Entity{ID: "21CS000", Name: "Bob"}))

		require.NoError(t, store.SetHandle(ctx, "21CS000", model.Gfg, "bob_gfg"))
		require.NoError(t, store.SetProfileURL(ctx, "21CS000", model.CodeChef, "https://www.codechef.com/users/bob"))
		require.NoError(t, store.SetHandle(ctx, "21CS001", model.Codeforces, ""))
		require.NoError(t, store.SetLastRefreshed(ctx, "21CS000", t0))
		require.NoError(t, store.AppendError(ctx, "21CS000", model.ErrorLogEntry{
			Source: model.Gfg, Kind: model.KindResource, Message: "no browser", Time: t0,
		}))

		entities, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, entities, 2)
		require.Equal(t, "21CS000", entities[0].ID)
		require.Equal(t, "bob_gfg", entities[0].Handle(model.Gfg))
		require.Equal(t, "https://www.codechef.com/users/bob", entities[0].ProfileURL(model.CodeChef))
		require.True(t, t0.Equal(entities[0].LastRefreshedAt))
		require.Len(t, entities[0].Errors, 1)
		require.Equal(t, "21CS001", entities[1].ID)
		require.Equal(t, "", entities[1].Handle(model.Codeforces))
		require.Empty(t, entities[1].Errors)

		require.NoError(t, store.Delete(ctx, "21CS000"))
		entities, err = store.List(ctx)
		require.NoError(t, err)
		require.Len(t, entities, 1)
	})
}

func TestSqliteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, limit int) Store {
		store, err := OpenSqlite(context.Background(), ":memory:", limit)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Config{File: "<dev_state>/cptracker.db"}.Validate())
	require.NoError(t, Config{Url: "libsql://db.turso.io"}.Validate())
	require.NoError(t, Config{Driver: DriverPostgres, Url: "postgres://localhost/db"}.Validate())
	require.Error(t, Config{}.Validate())
	require.Error(t, Config{Driver: DriverPostgres}.Validate())
	require.Error(t, Config{Driver: "mongo", Url: "x"}.Validate())
}
