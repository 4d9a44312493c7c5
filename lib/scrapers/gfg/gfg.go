package gfg

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cptracker-backend/lib/assert"
	"cptracker-backend/lib/browser"
	"cptracker-backend/lib/htmlutil"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers/scrapeutil"
	"cptracker-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const DefaultBaseUrl = "https://www.geeksforgeeks.org"

const (
	handleSelector   = `[class*="profilePicSection_head_userHandle"]`
	notFoundSelector = `[class*="notFound"]`
	cardSelector   = `[class*="scoreCard_head_card"]`
	streakSelector = `[class*="streakCnt"]`
	rankSelector   = `[class*="userRankContainer"]`
)

// the profile is rendered client side, wait until either the profile
// header or the "user does not exist" banner shows up
const renderWaitSelector = handleSelector + ", " + notFoundSelector

// Adapter only works through the browser, the static page carries none of
// the numbers.
type Adapter struct {
	client   *scrapeutil.Client
	renderer browser.Renderer
}

func New(opts scrapeutil.Options, renderer browser.Renderer) (*Adapter, error) {
	assert.NotNil(renderer, "renderer")

	client, err := scrapeutil.NewClient(model.Gfg, DefaultBaseUrl, opts)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client, renderer: renderer}, nil
}

func (a *Adapter) Source() model.SourceKind {
	return model.Gfg
}

func (a *Adapter) Fetch(ctx context.Context, handle string) (model.Profile, error) {
	return a.client.Fetch(ctx, handle, a.fetch)
}

func (a *Adapter) fetch(ctx context.Context, handle string) (model.Profile, error) {
	link := fmt.Sprintf("%s/user/%s/", a.client.BaseUrl(), url.PathEscape(handle))
	html, err := a.renderer.Render(ctx, link, renderWaitSelector)
	if err != nil {
		return model.Profile{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.Profile{}, fmt.Errorf("parse html: %w: %w", model.ErrParse, err)
	}
	return parseProfile(handle, doc.Selection)
}

func parseProfile(handle string, doc *goquery.Selection) (model.Profile, error) {
	if doc.Find(handleSelector).Length() == 0 {
		if doc.Find(notFoundSelector).Length() > 0 {
			return model.Profile{}, fmt.Errorf("no profile for %s: %w", handle, model.ErrNotFound)
		}
		return model.Profile{}, fmt.Errorf("profile for %s did not render: %w", handle, model.ErrTransient)
	}

	cards := doc.Find(cardSelector)
	if cards.Length() == 0 {
		return model.Profile{}, fmt.Errorf("profile for %s has no score cards: %w", handle, model.ErrParse)
	}

	var profile model.Profile
	var extra model.GfgExtra
	cards.Each(func(_ int, card *goquery.Selection) {
		label := strings.ToLower(htmlutil.FirstText(card, `[class*="--text"]`))
		value := textutil.IntOr(htmlutil.FirstText(card, `[class*="--score"]`), 0)
		switch {
		case strings.Contains(label, "monthly"):
			extra.MonthlyScore = value
		case strings.Contains(label, "coding score"):
			extra.CodingScore = value
		case strings.Contains(label, "solved"):
			profile.Solved = value
		}
	})

	// "12/1234" is current/longest streak
	extra.Streak = textutil.IntOr(htmlutil.FirstText(doc, streakSelector), 0)
	extra.InstituteRank = textutil.IntOr(htmlutil.FirstText(doc, rankSelector), 0)

	profile.Extra = extra
	return profile, nil
}
