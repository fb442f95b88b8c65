package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/pevans/propwatch/config"
	"github.com/pevans/propwatch/listing"
	"github.com/pevans/propwatch/logger"
)

const testOrigin = "https://www.nepremicnine.net/oglasi-prodaja/ljubljana-mesto/stanovanje/"

func intPtr(v int) *int { return &v }

func testListings() []listing.Listing {
	return []listing.Listing{
		listing.New("https://www.nepremicnine.net/oglasi-prodaja/siska_1/", testOrigin, "LJ. ŠIŠKA", 61.2, 185000, intPtr(1975)),
		listing.New("https://www.nepremicnine.net/oglasi-prodaja/center_2/?a=1&b=2", testOrigin, "<Center>", 74.5, 320000, nil),
	}
}

// fakeSender records the messages it is asked to deliver
type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func testSettings() config.Settings {
	return config.Settings{
		MailFrom:   "watcher@example.com",
		SMTPServer: "smtp.example.com",
		SMTPPort:   465,
		MailTo:     []string{"a@example.com", "b@example.com"},
	}
}

// TestRenderDigest verifies one row per listing with formatted numbers
func TestRenderDigest(t *testing.T) {
	html, err := RenderDigest(testListings())
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(html, "<tr>"), "header plus one row per listing")
	assert.Contains(t, html, `<a href="https://www.nepremicnine.net/oglasi-prodaja/siska_1/">`)
	assert.Contains(t, html, "LJ. ŠIŠKA")
	assert.Contains(t, html, "<td>1975</td>")
	assert.Contains(t, html, "185.000 €")
	assert.Contains(t, html, "320.000 €")
	assert.Contains(t, html, "€/m2")
	assert.Contains(t, html, "<td>N/A</td>", "unknown built year")
	assert.Contains(t, html, testOrigin)
}

// TestRenderDigest_Escapes verifies listing text cannot inject markup
func TestRenderDigest_Escapes(t *testing.T) {
	html, err := RenderDigest(testListings())
	require.NoError(t, err)

	assert.NotContains(t, html, "<Center>")
	assert.Contains(t, html, "&lt;Center&gt;")
	assert.Contains(t, html, "?a=1&amp;b=2")
}

// TestRenderDigest_Order verifies rows follow the given order
func TestRenderDigest_Order(t *testing.T) {
	html, err := RenderDigest(testListings())
	require.NoError(t, err)

	first := strings.Index(html, "siska_1")
	second := strings.Index(html, "center_2")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
}

// TestRenderDigest_Empty verifies an empty digest still renders the table
func TestRenderDigest_Empty(t *testing.T) {
	html, err := RenderDigest(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(html, "<tr>"))
}

// TestFormatMoney verifies rounding and Slovenian grouping
func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "185.000", formatMoney(185000.0))
	assert.Equal(t, "1.250.001", formatMoney(1250000.5))
	assert.Equal(t, "999", formatMoney(999))
}

// TestFormatYear verifies known years are printed without grouping
func TestFormatYear(t *testing.T) {
	year := 1975
	assert.Equal(t, "1975", formatYear(&year))
	assert.Equal(t, UnknownYear, formatYear(nil))
}

// TestMailer_Notify verifies the message envelope and body
func TestMailer_Notify(t *testing.T) {
	fake := &fakeSender{}
	m := newMailer(testSettings(), fake, logger.NewNop())

	require.NoError(t, m.Notify(context.Background(), testListings()))
	require.Len(t, fake.sent, 1)

	msg := fake.sent[0]
	assert.Equal(t, []string{Subject}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Equal(t, []string{"<watcher@example.com>"}, msg.GetFromString())
	assert.Equal(t, []string{"<a@example.com>", "<b@example.com>"}, msg.GetToString())

	parts := msg.GetParts()
	require.Len(t, parts, 1)
	assert.Equal(t, mail.TypeTextHTML, parts[0].GetContentType())
	content, err := parts[0].GetContent()
	require.NoError(t, err)
	assert.Contains(t, string(content), "185.000 €")
}

// TestMailer_NotifySendError verifies delivery errors are surfaced
func TestMailer_NotifySendError(t *testing.T) {
	fake := &fakeSender{err: errors.New("535 authentication failed")}
	m := newMailer(testSettings(), fake, logger.NewNop())

	err := m.Notify(context.Background(), testListings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send mail")
	assert.Contains(t, err.Error(), "535")
}

// TestMailer_InvalidAddress verifies malformed addresses are rejected
func TestMailer_InvalidAddress(t *testing.T) {
	settings := testSettings()
	settings.MailTo = []string{"not an address"}
	fake := &fakeSender{}
	m := newMailer(settings, fake, logger.NewNop())

	err := m.Notify(context.Background(), testListings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient address")
	assert.Empty(t, fake.sent)
}

// TestNewMailer_NoRecipients verifies recipients are required
func TestNewMailer_NoRecipients(t *testing.T) {
	settings := testSettings()
	settings.MailTo = nil

	_, err := NewMailer(settings, "secret", logger.NewNop())
	assert.ErrorIs(t, err, ErrNoRecipients)
}

// TestNewMailer verifies a client is created without dialing
func TestNewMailer(t *testing.T) {
	m, err := NewMailer(testSettings(), "secret", logger.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, m.client)
}
