package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Extension is the source specific part of a Profile. Exactly one
// implementation exists per SourceKind.
type Extension interface {
	Source() SourceKind
}

// ContestEntry is one contest in a profile's recent history.
type ContestEntry struct {
	Name      string    `json:"name"`
	Rank      int       `json:"rank"`
	NewRating int       `json:"new_rating"`
	Time      time.Time `json:"time"`
}

type CodeforcesExtra struct {
	Rank           string         `json:"rank"`
	MaxRank        string         `json:"max_rank"`
	Contribution   int            `json:"contribution"`
	RecentContests []ContestEntry `json:"recent_contests,omitempty"`
}

func (CodeforcesExtra) Source() SourceKind { return Codeforces }

type LeetCodeExtra struct {
	Easy           int            `json:"easy"`
	Medium         int            `json:"medium"`
	Hard           int            `json:"hard"`
	Ranking        int            `json:"ranking"`
	GlobalRanking  int            `json:"global_ranking"`
	Streak         int            `json:"streak"`
	Badges         []string       `json:"badges,omitempty"`
	RecentContests []ContestEntry `json:"recent_contests,omitempty"`
}

func (LeetCodeExtra) Source() SourceKind { return LeetCode }

type CodeChefExtra struct {
	Stars       string `json:"stars"`
	GlobalRank  int    `json:"global_rank"`
	CountryRank int    `json:"country_rank"`
}

func (CodeChefExtra) Source() SourceKind { return CodeChef }

type AtCoderExtra struct {
	Rank int `json:"rank"`
	// Kyu is AtCoder's rating band, e.g. "4 Kyu" or "1 Dan".
	Kyu string `json:"kyu"`
}

func (AtCoderExtra) Source() SourceKind { return AtCoder }

type GfgExtra struct {
	CodingScore   int `json:"coding_score"`
	MonthlyScore  int `json:"monthly_score"`
	InstituteRank int `json:"institute_rank"`
	Streak        int `json:"streak"`
}

func (GfgExtra) Source() SourceKind { return Gfg }

// Profile is a normalized snapshot of one entity's standing on one source.
// It is always written and replaced as a whole value.
type Profile struct {
	Source      SourceKind
	Rating      int
	MaxRating   int
	Solved      int
	Contests    int
	LastUpdated time.Time
	Extra       Extension
}

func (p Profile) Validate() error {
	if !p.Source.Valid() {
		return fmt.Errorf("profile has unknown source '%s'", p.Source)
	}
	if p.LastUpdated.IsZero() {
		return fmt.Errorf("%s profile is missing last_updated", p.Source)
	}
	if p.Extra != nil && p.Extra.Source() != p.Source {
		return fmt.Errorf(
			"%s profile carries %s extension",
			p.Source, p.Extra.Source(),
		)
	}
	return nil
}

type profileJSON struct {
	Source      SourceKind      `json:"source"`
	Rating      int             `json:"rating"`
	MaxRating   int             `json:"max_rating"`
	Solved      int             `json:"solved"`
	Contests    int             `json:"contests"`
	LastUpdated time.Time       `json:"last_updated"`
	Extra       json.RawMessage `json:"extra,omitempty"`
}

func (p Profile) MarshalJSON() ([]byte, error) {
	out := profileJSON{
		Source:      p.Source,
		Rating:      p.Rating,
		MaxRating:   p.MaxRating,
		Solved:      p.Solved,
		Contests:    p.Contests,
		LastUpdated: p.LastUpdated,
	}
	if p.Extra != nil {
		extra, err := json.Marshal(p.Extra)
		if err != nil {
			return nil, err
		}
		out.Extra = extra
	}
	return json.Marshal(out)
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var in profileJSON
	err := json.Unmarshal(data, &in)
	if err != nil {
		return err
	}

	*p = Profile{
		Source:      in.Source,
		Rating:      in.Rating,
		MaxRating:   in.MaxRating,
		Solved:      in.Solved,
		Contests:    in.Contests,
		LastUpdated: in.LastUpdated,
	}
	if len(in.Extra) == 0 || string(in.Extra) == "null" {
		return nil
	}

	var extra Extension
	switch in.Source {
	case Codeforces:
		var e CodeforcesExtra
		err = json.Unmarshal(in.Extra, &e)
		extra = e
	case LeetCode:
		var e LeetCodeExtra
		err = json.Unmarshal(in.Extra, &e)
		extra = e
	case CodeChef:
		var e CodeChefExtra
		err = json.Unmarshal(in.Extra, &e)
		extra = e
	case AtCoder:
		var e AtCoderExtra
		err = json.Unmarshal(in.Extra, &e)
		extra = e
	case Gfg:
		var e GfgExtra
		err = json.Unmarshal(in.Extra, &e)
		extra = e
	default:
		return fmt.Errorf("decode profile extension: unknown source '%s'", in.Source)
	}
	if err != nil {
		return fmt.Errorf("decode %s profile extension: %w", in.Source, err)
	}
	p.Extra = extra
	return nil
}
