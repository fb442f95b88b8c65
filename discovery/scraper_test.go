package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/propwatch/listing"
	"github.com/pevans/propwatch/logger"
	"github.com/pevans/propwatch/scraper"
)

const (
	searchURL = "https://www.nepremicnine.net/oglasi-prodaja/ljubljana-mesto/stanovanje/"
	linkA     = "https://www.nepremicnine.net/oglasi-prodaja/ljubljana-siska-stanovanje_6400001/"
	linkB     = "https://www.nepremicnine.net/oglasi-prodaja/ljubljana-center-stanovanje_6400002/"
)

const resultsPage = `<html><body>
<div class="oglas_container">
  <a href="https://www.nepremicnine.net/oglasi-prodaja/ljubljana-siska-stanovanje_6400001/">Šiška</a>
  <a href="https://www.nepremicnine.net/oglasi-prodaja/ljubljana-siska-stanovanje_6400001/">Šiška again</a>
  <a href="https://www.nepremicnine.net/oglasi-prodaja/ljubljana-center-stanovanje_6400002/">Center</a>
  <a href="https://www.nepremicnine.net/oglasi-prodaja/ljubljana-mesto/stanovanje/2/">Next page</a>
  <a href="https://www.example.com/oglasi-prodaja/x-y_1/">Elsewhere</a>
</div>
</body></html>`

const detailPageA = `<html><body>
<div class="cena"><span>185.000,00 €<del>199.000,00 €</del></span></div>
<div id="opis">
  <div class="kratek"><strong>LJ. ŠIŠKA</strong>, 61,20 m2, 2-sobno, zgrajeno l. 1975, adaptirano l. 2010.</div>
</div>
<ul id="atributi">
  <li>Nadstropje: 3/5</li>
  <li>Velikost: 61,20 m<sup>2</sup></li>
</ul>
</body></html>`

const detailPageB = `<html><body>
<div class="cena"><span>320.000,00 €</span></div>
<div id="opis">
  <div class="kratek">Prodamo stanovanje v centru, 74,50 m2.</div>
</div>
</body></html>`

// rewriteTransport sends every request to the test server, keeping the
// request path.
type rewriteTransport struct {
	target *url.URL

	mu       sync.Mutex
	requests []*http.Request
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.requests = append(rt.requests, req.Clone(req.Context()))
	rt.mu.Unlock()

	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

// Test helper: a scraper whose requests are served by pages, keyed by path
func createTestScraper(t *testing.T, pages map[string]string) (*Scraper, *rewriteTransport) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	rt := &rewriteTransport{target: target}

	s, err := NewScraper(Options{
		Client:          &http.Client{Transport: rt},
		RequestInterval: -1,
	}, logger.NewNop())
	require.NoError(t, err)
	return s, rt
}

func pathOf(t *testing.T, raw string) string {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Path
}

// TestScrape_CollectsListings verifies links are followed and fields read
func TestScrape_CollectsListings(t *testing.T) {
	s, rt := createTestScraper(t, map[string]string{
		pathOf(t, searchURL): resultsPage,
		pathOf(t, linkA):     detailPageA,
		pathOf(t, linkB):     detailPageB,
	})

	fields, err := s.Scrape(context.Background(), searchURL)
	require.NoError(t, err)
	require.Len(t, fields, 2)

	a := fields[0]
	assert.Equal(t, linkA, a.Link)
	assert.Equal(t, searchURL, a.OriginURL)
	assert.Equal(t, "185.000,00 €", a.Price)
	assert.Equal(t, "LJ. ŠIŠKA", a.Location)
	assert.Equal(t, "Velikost: 61,20 m2", a.Area)
	assert.Contains(t, a.Description, "zgrajeno l. 1975")

	b := fields[1]
	assert.Equal(t, linkB, b.Link)
	assert.Equal(t, "320.000,00 €", b.Price)
	assert.Empty(t, b.Location)
	assert.Empty(t, b.Area)

	require.Len(t, rt.requests, 3, "duplicate links are fetched once")
	for _, req := range rt.requests {
		assert.Equal(t, DefaultUserAgent, req.Header.Get("User-Agent"))
	}
}

// TestScrape_FieldsNormalize verifies scraped fields feed listing
// normalization
func TestScrape_FieldsNormalize(t *testing.T) {
	s, _ := createTestScraper(t, map[string]string{
		pathOf(t, searchURL): resultsPage,
		pathOf(t, linkA):     detailPageA,
		pathOf(t, linkB):     detailPageB,
	})

	fields, err := s.Scrape(context.Background(), searchURL)
	require.NoError(t, err)

	a, err := listing.Normalize(fields[0])
	require.NoError(t, err)
	assert.Equal(t, 185000.0, a.Price)
	assert.Equal(t, 61.2, a.Area)
	require.NotNil(t, a.BuiltYear)
	assert.Equal(t, 1975, *a.BuiltYear)

	b, err := listing.Normalize(fields[1])
	require.NoError(t, err)
	assert.Equal(t, 74.5, b.Area, "area falls back to the description")
	assert.Equal(t, listing.UnknownLocation, b.Location)
	assert.Nil(t, b.BuiltYear)
}

// TestScrape_NoListings verifies an empty result page is not an error
func TestScrape_NoListings(t *testing.T) {
	s, _ := createTestScraper(t, map[string]string{
		pathOf(t, searchURL): "<html><body>Ni zadetkov.</body></html>",
	})

	fields, err := s.Scrape(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

// TestScrape_SearchPageError verifies HTTP errors on the result page
func TestScrape_SearchPageError(t *testing.T) {
	s, _ := createTestScraper(t, map[string]string{})

	_, err := s.Scrape(context.Background(), searchURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error: 404")
}

// TestScrape_DetailPageError verifies a failed detail page fails the search
func TestScrape_DetailPageError(t *testing.T) {
	s, _ := createTestScraper(t, map[string]string{
		pathOf(t, searchURL): resultsPage,
		pathOf(t, linkA):     detailPageA,
	})

	fields, err := s.Scrape(context.Background(), searchURL)
	require.Error(t, err)
	assert.Nil(t, fields)
	assert.Contains(t, err.Error(), linkB)
}

// TestScrape_Cancelled verifies a cancelled context stops the scrape
func TestScrape_Cancelled(t *testing.T) {
	s, rt := createTestScraper(t, map[string]string{
		pathOf(t, searchURL): resultsPage,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scrape(ctx, searchURL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rt.requests)
}

// TestNewScraper_RequestPacing verifies requests are spaced by the limiter
func TestNewScraper_RequestPacing(t *testing.T) {
	s, err := NewScraper(Options{RequestInterval: 50 * time.Millisecond}, logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	for range 3 {
		require.NoError(t, s.limiter.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

// TestNewScraper_InvalidSelectors verifies bad selectors are rejected
func TestNewScraper_InvalidSelectors(t *testing.T) {
	sel := scraper.DefaultSelectors()
	sel.LinkPattern = `href="https://x/`
	_, err := NewScraper(Options{Selectors: sel}, logger.NewNop())
	assert.Error(t, err, "pattern without a capture group")

	sel.LinkPattern = `href="(`
	_, err = NewScraper(Options{Selectors: sel}, logger.NewNop())
	assert.Error(t, err)
}

// TestExtractLinks verifies distinct links in order of appearance
func TestExtractLinks(t *testing.T) {
	re, err := scraper.DefaultSelectors().Compile()
	require.NoError(t, err)

	links := ExtractLinks([]byte(resultsPage), re)
	assert.Equal(t, []string{linkA, linkB}, links)
}

// TestExtractListing_FirstTextNode verifies the primary price is preferred
// over nested older prices
func TestExtractListing_FirstTextNode(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(detailPageA))
	require.NoError(t, err)

	raw := ExtractListing(doc, scraper.DefaultSelectors(), linkA, searchURL)
	assert.Equal(t, "185.000,00 €", raw.Price)
}

// TestExtractListing_Missing verifies missing elements yield empty fields
func TestExtractListing_Missing(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)

	raw := ExtractListing(doc, scraper.DefaultSelectors(), linkA, searchURL)
	assert.Equal(t, linkA, raw.Link)
	assert.Empty(t, raw.Price)
	assert.Empty(t, raw.Area)

	_, err = listing.Normalize(raw)
	assert.ErrorIs(t, err, listing.ErrInvalidField)
}
