package atcoder

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

const userFixture = `<html><body><div id="main-container">
<h3>Contest Status</h3>
<table class="dl-table mt-2">
	<tr><th class="no-break">Rank</th><td>1,234th</td></tr>
	<tr><th class="no-break">Rating</th><td><span class="user-cyan">1456</span></td></tr>
	<tr><th class="no-break">Highest Rating</th><td>
		<span class="user-cyan">1502</span>
		<span class="gray">&#8213;</span>
		<span class="bold">3 Kyu</span>
		<span class="gray">(+98 to promote)</span>
	</td></tr>
	<tr><th class="no-break">Rated Matches</th><td>37</td></tr>
	<tr><th class="no-break">Last Competed</th><td>2024/04/27</td></tr>
</table>
</div></body></html>`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *chrono.ManualTime) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	clock := chrono.NewManualTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	adapter, err := New(scrapeutil.Options{BaseUrl: server.URL, Rps: 100, Time: clock})
	require.NoError(t, err)
	return adapter, clock
}

func TestFetch(t *testing.T) {
	adapter, clock := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/bob", r.URL.Path)
		w.Write([]byte(userFixture))
	})

	profile, err := adapter.Fetch(context.Background(), "bob")
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(model.Profile{
		Source:      model.AtCoder,
		Rating:      1456,
		MaxRating:   1502,
		Contests:    37,
		LastUpdated: clock.Now(),
		Extra:       model.AtCoderExtra{Rank: 1234, Kyu: "3 Kyu"},
	}, profile))
}

func TestFetchUnrated(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="main-container"><p>This user has not competed yet.</p></div></body></html>`))
	})

	profile, err := adapter.Fetch(context.Background(), "newbie")
	require.NoError(t, err)
	require.Equal(t, 0, profile.Rating)
	require.Equal(t, model.AtCoderExtra{}, profile.Extra)
}

func TestFetchNotFound(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := adapter.Fetch(context.Background(), "ghost")
	require.ErrorIs(t, err, model.ErrNotFound)
}
