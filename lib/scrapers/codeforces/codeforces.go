package codeforces

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers/scrapeutil"
)

const DefaultBaseUrl = "https://codeforces.com"

// recentContestLimit bounds the history kept on the profile.
const recentContestLimit = 5

type Adapter struct {
	client *scrapeutil.Client
}

func New(opts scrapeutil.Options) (*Adapter, error) {
	client, err := scrapeutil.NewClient(model.Codeforces, DefaultBaseUrl, opts)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

func (a *Adapter) Source() model.SourceKind {
	return model.Codeforces
}

func (a *Adapter) Fetch(ctx context.Context, handle string) (model.Profile, error) {
	return a.client.Fetch(ctx, handle, a.fetch)
}

type envelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

type userInfo struct {
	Handle       string `json:"handle"`
	Rating       int    `json:"rating"`
	MaxRating    int    `json:"maxRating"`
	Rank         string `json:"rank"`
	MaxRank      string `json:"maxRank"`
	Contribution int    `json:"contribution"`
}

type ratingChange struct {
	ContestId               int    `json:"contestId"`
	ContestName             string `json:"contestName"`
	Rank                    int    `json:"rank"`
	RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
	NewRating               int    `json:"newRating"`
}

type submission struct {
	Verdict string `json:"verdict"`
	Problem struct {
		ContestId int    `json:"contestId"`
		Index     string `json:"index"`
		Name      string `json:"name"`
	} `json:"problem"`
}

// call hits one API method and decodes `result` into out. The API answers
// unknown handles with a 400 FAILED envelope instead of a 404.
func (a *Adapter) call(ctx context.Context, method string, params map[string]string, out any) error {
	res, err := a.client.Http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/api/" + method)
	if err != nil {
		return scrapeutil.CheckResponse(res, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(res.Body(), &env)
	if env.Status == "FAILED" {
		if strings.Contains(strings.ToLower(env.Comment), "not found") {
			return fmt.Errorf("%s: %s: %w", method, env.Comment, model.ErrNotFound)
		}
		if res.StatusCode() == http.StatusBadRequest {
			return fmt.Errorf("%s: %s", method, env.Comment)
		}
	}
	err = scrapeutil.StatusError(res.StatusCode(), res.Request.URL)
	if err != nil {
		return err
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: decode envelope: %w: %w", method, model.ErrParse, decodeErr)
	}
	if env.Status != "OK" {
		return fmt.Errorf("%s: status '%s': %w", method, env.Status, model.ErrParse)
	}

	err = json.Unmarshal(env.Result, out)
	if err != nil {
		return fmt.Errorf("%s: decode result: %w: %w", method, model.ErrParse, err)
	}
	return nil
}

func (a *Adapter) fetch(ctx context.Context, handle string) (model.Profile, error) {
	var users []userInfo
	err := a.call(ctx, "user.info", map[string]string{"handles": handle}, &users)
	if err != nil {
		return model.Profile{}, err
	}
	if len(users) == 0 {
		return model.Profile{}, fmt.Errorf("user.info returned no users for %s: %w", handle, model.ErrNotFound)
	}
	user := users[0]

	var changes []ratingChange
	err = a.call(ctx, "user.rating", map[string]string{"handle": handle}, &changes)
	if err != nil {
		return model.Profile{}, err
	}

	var submissions []submission
	err = a.call(ctx, "user.status", map[string]string{"handle": handle}, &submissions)
	if err != nil {
		return model.Profile{}, err
	}

	return model.Profile{
		Rating:    user.Rating,
		MaxRating: user.MaxRating,
		Solved:    countSolved(submissions),
		Contests:  len(changes),
		Extra: model.CodeforcesExtra{
			Rank:           user.Rank,
			MaxRank:        user.MaxRank,
			Contribution:   user.Contribution,
			RecentContests: recentContests(changes),
		},
	}, nil
}

// countSolved counts distinct problems with at least one accepted submission.
func countSolved(submissions []submission) int {
	solved := map[string]struct{}{}
	for _, s := range submissions {
		if s.Verdict != "OK" {
			continue
		}
		key := fmt.Sprintf("%d/%s/%s", s.Problem.ContestId, s.Problem.Index, s.Problem.Name)
		solved[key] = struct{}{}
	}
	return len(solved)
}

func recentContests(changes []ratingChange) []model.ContestEntry {
	sorted := make([]ratingChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RatingUpdateTimeSeconds > sorted[j].RatingUpdateTimeSeconds
	})
	if len(sorted) > recentContestLimit {
		sorted = sorted[:recentContestLimit]
	}

	var out []model.ContestEntry
	for _, c := range sorted {
		out = append(out, model.ContestEntry{
			Name:      c.ContestName,
			Rank:      c.Rank,
			NewRating: c.NewRating,
			Time:      time.Unix(c.RatingUpdateTimeSeconds, 0).UTC(),
		})
	}
	return out
}
