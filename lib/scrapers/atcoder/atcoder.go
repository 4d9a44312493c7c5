package atcoder

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"cptracker-backend/lib/htmlutil"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers/scrapeutil"
	"cptracker-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const DefaultBaseUrl = "https://atcoder.jp"

type Adapter struct {
	client *scrapeutil.Client
}

func New(opts scrapeutil.Options) (*Adapter, error) {
	client, err := scrapeutil.NewClient(model.AtCoder, DefaultBaseUrl, opts)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

func (a *Adapter) Source() model.SourceKind {
	return model.AtCoder
}

func (a *Adapter) Fetch(ctx context.Context, handle string) (model.Profile, error) {
	return a.client.Fetch(ctx, handle, a.fetch)
}

func (a *Adapter) fetch(ctx context.Context, handle string) (model.Profile, error) {
	res, err := a.client.Http.R().
		SetContext(ctx).
		SetQueryParam("lang", "en").
		Get("/users/" + url.PathEscape(handle))
	err = scrapeutil.CheckResponse(res, err)
	if err != nil {
		return model.Profile{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.String()))
	if err != nil {
		return model.Profile{}, fmt.Errorf("parse html: %w: %w", model.ErrParse, err)
	}
	return parseProfile(doc.Selection)
}

var kyuRegex = regexp.MustCompile(`\d+\s*(Kyu|Dan)`)

// parseProfile reads the `dl-table` rows of a user page. Users that never
// entered a rated contest have no table at all and get a zero profile.
func parseProfile(doc *goquery.Selection) (model.Profile, error) {
	if doc.Find("#main-container").Length() == 0 && doc.Find(".dl-table").Length() == 0 {
		return model.Profile{}, fmt.Errorf("user page has no main container: %w", model.ErrParse)
	}

	rows := map[string]*goquery.Selection{}
	doc.Find("table.dl-table tr").Each(func(_ int, tr *goquery.Selection) {
		label := strings.ToLower(htmlutil.CleanText(tr.Find("th").First()))
		rows[label] = tr.Find("td").First()
	})

	var profile model.Profile
	var extra model.AtCoderExtra

	if td, ok := rows["rank"]; ok {
		extra.Rank = textutil.IntOr(htmlutil.CleanText(td), 0)
	}
	if td, ok := rows["rating"]; ok {
		rating, ok := textutil.FirstInt(htmlutil.FirstText(td, "span"))
		if !ok {
			return model.Profile{}, fmt.Errorf("rating '%s' is not a number: %w", htmlutil.CleanText(td), model.ErrParse)
		}
		profile.Rating = rating
	}
	profile.MaxRating = profile.Rating
	if td, ok := rows["highest rating"]; ok {
		profile.MaxRating = textutil.IntOr(htmlutil.FirstText(td, "span"), profile.Rating)
		extra.Kyu = kyuRegex.FindString(htmlutil.CleanText(td))
	}
	if td, ok := rows["rated matches"]; ok {
		profile.Contests = textutil.IntOr(htmlutil.CleanText(td), 0)
	}

	profile.Extra = extra
	return profile, nil
}
