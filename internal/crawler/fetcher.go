package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// Link is one outbound link found on a fetched page, with the placement
// signals the scorer needs.
type Link struct {
	Href       string // Raw href attribute
	URL        string // Resolved absolute URL
	AnchorText string
	Landmarks  Landmarks
}

// PageContent is the result of fetching one page.
type PageContent struct {
	HTML        string
	Title       string
	VisibleText string
	Links       []Link
}

// FetchError reports a transport failure or non-success HTTP status while
// fetching a page. The scheduler treats it as permanent for that page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher fetches single pages and extracts title, visible text, and
// outbound links with landmark placement.
type Fetcher struct {
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// NewFetcher creates a new page fetcher.
func NewFetcher(timeout time.Duration, userAgent string, logger *slog.Logger) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		timeout:   timeout,
		userAgent: userAgent,
		logger:    logger.With("component", "fetcher"),
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Fetch retrieves pageURL and extracts its content. A fresh collector per
// call keeps fetches independent; the request timeout bounds each attempt.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*PageContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(f.timeout)

	content := &PageContent{}
	var fetchErr *FetchError

	c.OnResponse(func(r *colly.Response) {
		content.HTML = string(r.Body)
	})

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if content.Title == "" {
			content.Title = strings.TrimSpace(e.Text)
		}
	})

	c.OnHTML("body", func(e *colly.HTMLElement) {
		content.VisibleText = collapseWhitespace(e.DOM.Text())
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if href == "" {
			return
		}
		content.Links = append(content.Links, Link{
			Href:       href,
			URL:        e.Request.AbsoluteURL(href),
			AnchorText: strings.TrimSpace(e.Text),
			Landmarks: Landmarks{
				InNav:    inLandmark(e.DOM, "nav"),
				InFooter: inLandmark(e.DOM, "footer"),
				InAside:  inLandmark(e.DOM, "aside"),
			},
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = &FetchError{URL: pageURL, StatusCode: r.StatusCode, Err: err}
	})

	visitErr := c.Visit(pageURL)
	c.Wait()

	// OnError fires for HTTP error statuses too and carries the status code,
	// so prefer it over the bare Visit error.
	if fetchErr == nil && visitErr != nil {
		fetchErr = &FetchError{URL: pageURL, Err: visitErr}
	}
	if fetchErr != nil {
		f.logger.Debug("page fetch failed",
			"url", pageURL,
			"status", fetchErr.StatusCode,
			"error", fetchErr.Err,
		)
		return nil, fetchErr
	}

	f.logger.Debug("page fetched",
		"url", pageURL,
		"title", content.Title,
		"links", len(content.Links),
		"text_length", len(content.VisibleText),
	)
	return content, nil
}

// inLandmark reports whether sel sits inside the given landmark element.
func inLandmark(sel *goquery.Selection, tag string) bool {
	return sel.Closest(tag).Length() > 0
}

// collapseWhitespace collapses runs of whitespace to single spaces and trims.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
