package codeforces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cptracker-backend/lib/chrono"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers/scrapeutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var fixtures = map[string]string{
	"/api/user.info": `{"status":"OK","result":[{
		"handle":"tourist","rating":3500,"maxRating":3979,
		"rank":"legendary grandmaster","maxRank":"tourist","contribution":120
	}]}`,
	"/api/user.rating": `{"status":"OK","result":[
		{"contestId":1,"contestName":"Round 1","rank":3,"ratingUpdateTimeSeconds":1700000000,"newRating":3400},
		{"contestId":2,"contestName":"Round 2","rank":1,"ratingUpdateTimeSeconds":1710000000,"newRating":3500}
	]}`,
	"/api/user.status": `{"status":"OK","result":[
		{"verdict":"OK","problem":{"contestId":1,"index":"A","name":"Sum"}},
		{"verdict":"OK","problem":{"contestId":1,"index":"A","name":"Sum"}},
		{"verdict":"WRONG_ANSWER","problem":{"contestId":1,"index":"B","name":"Product"}},
		{"verdict":"OK","problem":{"contestId":2,"index":"C","name":"Graph"}}
	]}`,
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *chrono.ManualTime) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	clock := chrono.NewManualTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	adapter, err := New(scrapeutil.Options{
		BaseUrl: server.URL,
		Rps:     100,
		Time:    clock,
		RetrySleep: func(ctx context.Context, d time.Duration) error {
			return nil
		},
	})
	require.NoError(t, err)
	return adapter, clock
}

func TestFetch(t *testing.T) {
	adapter, clock := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		body, ok := fixtures[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(body))
	})

	profile, err := adapter.Fetch(context.Background(), "tourist")
	require.NoError(t, err)

	expected := model.Profile{
		Source:      model.Codeforces,
		Rating:      3500,
		MaxRating:   3979,
		Solved:      2,
		Contests:    2,
		LastUpdated: clock.Now(),
		Extra: model.CodeforcesExtra{
			Rank:         "legendary grandmaster",
			MaxRank:      "tourist",
			Contribution: 120,
			RecentContests: []model.ContestEntry{
				{Name: "Round 2", Rank: 1, NewRating: 3500, Time: time.Unix(1710000000, 0).UTC()},
				{Name: "Round 1", Rank: 3, NewRating: 3400, Time: time.Unix(1700000000, 0).UTC()},
			},
		},
	}
	require.Empty(t, cmp.Diff(expected, profile))
}

func TestFetchNotFound(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"FAILED","comment":"handles: User with handle nobody_here not found"}`))
	})

	_, err := adapter.Fetch(context.Background(), "nobody_here")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestFetchUnexpectedShape(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := adapter.Fetch(context.Background(), "tourist")
	require.ErrorIs(t, err, model.ErrParse)
}
