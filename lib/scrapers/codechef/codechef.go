package codechef

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cptracker-backend/lib/browser"
	"cptracker-backend/lib/htmlutil"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers/scrapeutil"
	"cptracker-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const DefaultBaseUrl = "https://www.codechef.com"

// renderWaitSelector matches both a profile page and the page codechef
// serves for unknown users.
const renderWaitSelector = "body"

type Adapter struct {
	client   *scrapeutil.Client
	renderer browser.Renderer
}

// New builds the static HTML adapter when `renderer` is nil, otherwise
// pages are loaded through the browser.
func New(opts scrapeutil.Options, renderer browser.Renderer) (*Adapter, error) {
	client, err := scrapeutil.NewClient(model.CodeChef, DefaultBaseUrl, opts)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client, renderer: renderer}, nil
}

func (a *Adapter) Source() model.SourceKind {
	return model.CodeChef
}

func (a *Adapter) Fetch(ctx context.Context, handle string) (model.Profile, error) {
	return a.client.Fetch(ctx, handle, a.fetch)
}

func (a *Adapter) fetch(ctx context.Context, handle string) (model.Profile, error) {
	doc, err := a.load(ctx, handle)
	if err != nil {
		return model.Profile{}, err
	}
	return parseProfile(handle, doc.Selection)
}

func (a *Adapter) load(ctx context.Context, handle string) (*goquery.Document, error) {
	path := "/users/" + url.PathEscape(handle)

	var body string
	if a.renderer != nil {
		rendered, err := a.renderer.Render(ctx, a.client.BaseUrl()+path, renderWaitSelector)
		if err != nil {
			return nil, err
		}
		body = rendered
	} else {
		res, err := a.client.Http.R().
			SetContext(ctx).
			Get(path)
		err = scrapeutil.CheckResponse(res, err)
		if err != nil {
			return nil, err
		}
		body = res.String()
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w: %w", model.ErrParse, err)
	}
	return doc, nil
}

func parseProfile(handle string, doc *goquery.Selection) (model.Profile, error) {
	container := doc.Find(".user-details-container")
	if container.Length() == 0 {
		return model.Profile{}, fmt.Errorf("no profile container for %s: %w", handle, model.ErrNotFound)
	}

	ratingText := htmlutil.FirstText(doc, ".rating-number")
	rating, ok := textutil.FirstInt(ratingText)
	if !ok {
		return model.Profile{}, fmt.Errorf("rating '%s' is not a number: %w", ratingText, model.ErrParse)
	}

	maxRating := rating
	highest := htmlutil.FirstText(doc, ".rating-header small")
	if n, ok := textutil.FirstInt(highest); ok {
		maxRating = n
	}

	extra := model.CodeChefExtra{
		Stars: htmlutil.FirstText(doc, ".rating-star, span.rating"),
	}
	doc.Find(".rating-ranks li").Each(func(_ int, li *goquery.Selection) {
		text := strings.ToLower(htmlutil.CleanText(li))
		value := textutil.IntOr(htmlutil.FirstText(li, "strong"), 0)
		switch {
		case strings.Contains(text, "global"):
			extra.GlobalRank = value
		case strings.Contains(text, "country"):
			extra.CountryRank = value
		}
	})

	solved := 0
	doc.Find(".problems-solved h3, .rating-data-section h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		text := htmlutil.CleanText(h)
		if !strings.Contains(strings.ToLower(text), "solved") {
			return true
		}
		solved = textutil.IntOr(text, 0)
		return false
	})

	contests := textutil.IntOr(htmlutil.FirstText(doc, ".contest-participated-count b"), 0)

	return model.Profile{
		Rating:    rating,
		MaxRating: maxRating,
		Solved:    solved,
		Contests:  contests,
		Extra:     extra,
	}, nil
}
