package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/pevans/propwatch/listing"
	"github.com/pevans/propwatch/logger"
	"github.com/pevans/propwatch/scraper"
)

// DefaultUserAgent is a desktop browser identity; the site serves reduced
// pages to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Defaults for Options.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultRequestInterval = 2 * time.Second
)

// Options configures a Scraper. Zero values select the defaults.
type Options struct {
	Selectors       scraper.Selectors
	UserAgent       string
	Timeout         time.Duration
	RequestInterval time.Duration // minimum spacing between requests
	Client          *http.Client
}

// Scraper collects raw listing fields for a search URL.
type Scraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	selectors scraper.Selectors
	linkRe    *regexp.Regexp
	userAgent string
	log       logger.Logger
}

// NewScraper creates a scraper. The zero Options value scrapes
// nepremicnine.net with the default pacing.
func NewScraper(opts Options, log logger.Logger) (*Scraper, error) {
	if opts.Selectors == (scraper.Selectors{}) {
		opts.Selectors = scraper.DefaultSelectors()
	}
	linkRe, err := opts.Selectors.Compile()
	if err != nil {
		return nil, fmt.Errorf("invalid selectors: %w", err)
	}

	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestInterval < 0 {
		opts.RequestInterval = 0
	} else if opts.RequestInterval == 0 {
		opts.RequestInterval = DefaultRequestInterval
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Scraper{
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(opts.RequestInterval), 1),
		selectors: opts.Selectors,
		linkRe:    linkRe,
		userAgent: opts.UserAgent,
		log:       log,
	}, nil
}

// Scrape fetches the result page at searchURL, then every distinct detail page
// it links to, in order of first appearance. A failed detail page fails the
// whole search so callers never mistake a partial result for a complete one.
func (s *Scraper) Scrape(ctx context.Context, searchURL string) ([]listing.RawFields, error) {
	page, err := s.fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search results: %w", err)
	}

	links := ExtractLinks(page, s.linkRe)
	s.log.Info("Found listing links",
		logger.String("url", searchURL),
		logger.Int("links", len(links)),
	)

	fields := make([]listing.RawFields, 0, len(links))
	for _, link := range links {
		s.log.Debug("Fetching listing", logger.String("link", link))

		doc, err := s.FetchHTML(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch listing %s: %w", link, err)
		}
		fields = append(fields, ExtractListing(doc, s.selectors, link, searchURL))
	}

	return fields, nil
}

// FetchHTML fetches and parses the page at url.
func (s *Scraper) FetchHTML(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// fetch waits for the rate limiter and returns the raw page body.
func (s *Scraper) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "sl-SI,sl;q=0.9,en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// ExtractLinks returns the distinct detail links in page, in order of first
// appearance.
func ExtractLinks(page []byte, re *regexp.Regexp) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, m := range re.FindAllSubmatch(page, -1) {
		link := string(m[1])
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}

// ExtractListing reads the raw listing fields from a detail page. Missing
// elements yield empty fields; judging them is left to listing.Normalize.
func ExtractListing(doc *goquery.Document, sel scraper.Selectors, link, originURL string) listing.RawFields {
	raw := listing.RawFields{
		Link:      link,
		OriginURL: originURL,
		Price:     firstTextNode(doc.Find(sel.PriceSelector).First()),
	}

	if sel.LocationSelector != "" {
		raw.Location = normalizeSpace(doc.Find(sel.LocationSelector).First().Text())
	}

	if sel.AttributesSelector != "" && sel.AreaLabel != "" {
		doc.Find(sel.AttributesSelector).EachWithBreak(func(i int, item *goquery.Selection) bool {
			text := item.Text()
			if strings.Contains(text, sel.AreaLabel) {
				raw.Area = strings.TrimSpace(text)
				return false
			}
			return true
		})
	}

	if sel.DescriptionSelector != "" {
		raw.Description = normalizeSpace(doc.Find(sel.DescriptionSelector).First().Text())
	}

	return raw
}

// firstTextNode returns the first direct text child of s, which holds the
// primary price when the element also lists older prices.
func firstTextNode(s *goquery.Selection) string {
	text := s.Contents().FilterFunction(func(i int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text" && strings.TrimSpace(c.Text()) != ""
	}).First().Text()
	if text == "" {
		text = s.Text()
	}
	return strings.TrimSpace(text)
}

// normalizeSpace replaces runs of whitespace with a single space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
