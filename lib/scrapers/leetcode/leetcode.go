package leetcode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers/scrapeutil"
)

const DefaultBaseUrl = "https://leetcode.com"

const recentContestLimit = 5

const profileQuery = `query userProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile { ranking }
    submitStatsGlobal { acSubmissionNum { difficulty count } }
    badges { displayName }
    userCalendar { streak }
  }
  userContestRanking(username: $username) {
    attendedContestsCount
    rating
    globalRanking
  }
  userContestRankingHistory(username: $username) {
    attended
    rating
    ranking
    contest { title startTime }
  }
}`

type Adapter struct {
	client *scrapeutil.Client
}

func New(opts scrapeutil.Options) (*Adapter, error) {
	client, err := scrapeutil.NewClient(model.LeetCode, DefaultBaseUrl, opts)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

func (a *Adapter) Source() model.SourceKind {
	return model.LeetCode
}

func (a *Adapter) Fetch(ctx context.Context, handle string) (model.Profile, error) {
	return a.client.Fetch(ctx, handle, a.fetch)
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data   *profileData `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type profileData struct {
	MatchedUser *struct {
		Username string `json:"username"`
		Profile  struct {
			Ranking int `json:"ranking"`
		} `json:"profile"`
		SubmitStatsGlobal struct {
			AcSubmissionNum []struct {
				Difficulty string `json:"difficulty"`
				Count      int    `json:"count"`
			} `json:"acSubmissionNum"`
		} `json:"submitStatsGlobal"`
		Badges []struct {
			DisplayName string `json:"displayName"`
		} `json:"badges"`
		UserCalendar *struct {
			Streak int `json:"streak"`
		} `json:"userCalendar"`
	} `json:"matchedUser"`
	UserContestRanking *struct {
		AttendedContestsCount int     `json:"attendedContestsCount"`
		Rating                float64 `json:"rating"`
		GlobalRanking         int     `json:"globalRanking"`
	} `json:"userContestRanking"`
	UserContestRankingHistory []struct {
		Attended bool    `json:"attended"`
		Rating   float64 `json:"rating"`
		Ranking  int     `json:"ranking"`
		Contest  struct {
			Title     string `json:"title"`
			StartTime int64  `json:"startTime"`
		} `json:"contest"`
	} `json:"userContestRankingHistory"`
}

func (a *Adapter) fetch(ctx context.Context, handle string) (model.Profile, error) {
	res, err := a.client.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetHeader("referer", fmt.Sprintf("%s/u/%s/", a.client.BaseUrl(), handle)).
		SetBody(graphqlRequest{
			Query:     profileQuery,
			Variables: map[string]any{"username": handle},
		}).
		Post("/graphql")
	err = scrapeutil.CheckResponse(res, err)
	if err != nil {
		return model.Profile{}, err
	}

	var body graphqlResponse
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		return model.Profile{}, fmt.Errorf("decode graphql response: %w: %w", model.ErrParse, err)
	}
	if body.Data == nil {
		if len(body.Errors) > 0 {
			return model.Profile{}, fmt.Errorf("graphql: %s: %w", body.Errors[0].Message, model.ErrParse)
		}
		return model.Profile{}, fmt.Errorf("graphql response has no data: %w", model.ErrParse)
	}
	return toProfile(handle, *body.Data)
}

func toProfile(handle string, data profileData) (model.Profile, error) {
	user := data.MatchedUser
	if user == nil {
		return model.Profile{}, fmt.Errorf("no user matched %s: %w", handle, model.ErrNotFound)
	}

	extra := model.LeetCodeExtra{
		Ranking: user.Profile.Ranking,
	}
	solved := 0
	for _, stat := range user.SubmitStatsGlobal.AcSubmissionNum {
		switch strings.ToLower(stat.Difficulty) {
		case "all":
			solved = stat.Count
		case "easy":
			extra.Easy = stat.Count
		case "medium":
			extra.Medium = stat.Count
		case "hard":
			extra.Hard = stat.Count
		}
	}
	if solved == 0 {
		solved = extra.Easy + extra.Medium + extra.Hard
	}
	for _, badge := range user.Badges {
		extra.Badges = append(extra.Badges, badge.DisplayName)
	}
	if user.UserCalendar != nil {
		extra.Streak = user.UserCalendar.Streak
	}

	profile := model.Profile{Solved: solved}
	if data.UserContestRanking != nil {
		profile.Rating = int(math.Round(data.UserContestRanking.Rating))
		profile.Contests = data.UserContestRanking.AttendedContestsCount
		extra.GlobalRanking = data.UserContestRanking.GlobalRanking
	}

	maxRating := profile.Rating
	var attended []model.ContestEntry
	for _, entry := range data.UserContestRankingHistory {
		if !entry.Attended {
			continue
		}
		rating := int(math.Round(entry.Rating))
		if rating > maxRating {
			maxRating = rating
		}
		attended = append(attended, model.ContestEntry{
			Name:      entry.Contest.Title,
			Rank:      entry.Ranking,
			NewRating: rating,
			Time:      time.Unix(entry.Contest.StartTime, 0).UTC(),
		})
	}
	profile.MaxRating = maxRating

	// history comes oldest first
	for i := len(attended) - 1; i >= 0 && len(extra.RecentContests) < recentContestLimit; i-- {
		extra.RecentContests = append(extra.RecentContests, attended[i])
	}

	profile.Extra = extra
	return profile, nil
}
