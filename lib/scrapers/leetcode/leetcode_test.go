package leetcode

import (
	"context"
	"encoding/json"
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

const userFixture = `{"data":{
	"matchedUser":{
		"username":"alice",
		"profile":{"ranking":20345},
		"submitStatsGlobal":{"acSubmissionNum":[
			{"difficulty":"All","count":412},
			{"difficulty":"Easy","count":200},
			{"difficulty":"Medium","count":180},
			{"difficulty":"Hard","count":32}
		]},
		"badges":[{"displayName":"50 Days Badge 2024"}],
		"userCalendar":{"streak":14}
	},
	"userContestRanking":{"attendedContestsCount":3,"rating":1850.62,"globalRanking":9001},
	"userContestRankingHistory":[
		{"attended":true,"rating":1500.1,"ranking":4000,"contest":{"title":"Weekly 1","startTime":1700000000}},
		{"attended":false,"rating":1500.1,"ranking":0,"contest":{"title":"Weekly 2","startTime":1700600000}},
		{"attended":true,"rating":1912.4,"ranking":800,"contest":{"title":"Weekly 3","startTime":1701200000}},
		{"attended":true,"rating":1850.62,"ranking":1500,"contest":{"title":"Weekly 4","startTime":1701800000}}
	]
}}`

const missingFixture = `{"errors":[{"message":"That user does not exist."}],"data":{"matchedUser":null,"userContestRanking":null,"userContestRankingHistory":null}}`

func newTestAdapter(t *testing.T, body string) (*Adapter, *chrono.ManualTime) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/graphql", r.URL.Path)

		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Variables["username"])

		w.Header().Set("content-type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	clock := chrono.NewManualTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	adapter, err := New(scrapeutil.Options{BaseUrl: server.URL, Rps: 100, Time: clock})
	require.NoError(t, err)
	return adapter, clock
}

func TestFetch(t *testing.T) {
	adapter, clock := newTestAdapter(t, userFixture)

	profile, err := adapter.Fetch(context.Background(), "alice")
	require.NoError(t, err)

	expected := model.Profile{
		Source:      model.LeetCode,
		Rating:      1851,
		MaxRating:   1912,
		Solved:      412,
		Contests:    3,
		LastUpdated: clock.Now(),
		Extra: model.LeetCodeExtra{
			Easy:          200,
			Medium:        180,
			Hard:          32,
			Ranking:       20345,
			GlobalRanking: 9001,
			Streak:        14,
			Badges:        []string{"50 Days Badge 2024"},
			RecentContests: []model.ContestEntry{
				{Name: "Weekly 4", Rank: 1500, NewRating: 1851, Time: time.Unix(1701800000, 0).UTC()},
				{Name: "Weekly 3", Rank: 800, NewRating: 1912, Time: time.Unix(1701200000, 0).UTC()},
				{Name: "Weekly 1", Rank: 4000, NewRating: 1500, Time: time.Unix(1700000000, 0).UTC()},
			},
		},
	}
	require.Empty(t, cmp.Diff(expected, profile))
}

func TestFetchNotFound(t *testing.T) {
	adapter, _ := newTestAdapter(t, missingFixture)

	_, err := adapter.Fetch(context.Background(), "nobody")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestFetchNoContests(t *testing.T) {
	adapter, _ := newTestAdapter(t, `{"data":{
		"matchedUser":{"username":"bob","profile":{"ranking":1},"submitStatsGlobal":{"acSubmissionNum":[
			{"difficulty":"Easy","count":3},{"difficulty":"Medium","count":2}
		]},"badges":[]},
		"userContestRanking":null,
		"userContestRankingHistory":[]
	}}`)

	profile, err := adapter.Fetch(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, 0, profile.Rating)
	require.Equal(t, 0, profile.MaxRating)
	require.Equal(t, 5, profile.Solved)
}
