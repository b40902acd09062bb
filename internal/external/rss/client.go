package rss

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/httputil"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

// Client pulls market headlines from RSS feeds
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	feeds      []string
	symbols    []string
}

// NewClient creates a feed reader that tags items with any tracked symbol they mention
func NewClient(httpClient *httputil.Client, feeds, symbols []string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("rss"),
		feeds:      feeds,
		symbols:    symbols,
	}
}

// FetchAll reads every configured feed.
// A failing feed is logged and skipped.
func (c *Client) FetchAll(ctx context.Context) ([]contracts.NewsItem, error) {
	var all []contracts.NewsItem
	failed := 0

	for _, feed := range c.feeds {
		body, err := c.httpClient.GetBody(ctx, feed)
		if err != nil {
			failed++
			c.logger.WithError(err).WithField("feed", feed).Warn("Failed to fetch feed")
			continue
		}

		items, err := Parse(body, c.symbols)
		if err != nil {
			failed++
			c.logger.WithError(err).WithField("feed", feed).Warn("Failed to parse feed")
			continue
		}
		all = append(all, items...)
	}

	if len(c.feeds) > 0 && failed == len(c.feeds) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, contracts.ErrDataUnavailable)
	}
	return all, nil
}

var cdata = regexp.MustCompile(`<!\[CDATA\[(.*?)\]\]>`)

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

// Parse extracts dated headlines from an RSS document.
// Items without a title or a parseable pubDate are skipped.
func Parse(body []byte, symbols []string) ([]contracts.NewsItem, error) {
	// the HTML parser drops CDATA sections, so unwrap them first
	body = cdata.ReplaceAll(body, []byte("$1"))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w: %w", contracts.ErrSchemaMismatch, err)
	}

	channelSource := strings.TrimSpace(doc.Find("channel > title").First().Text())

	var items []contracts.NewsItem
	doc.Find("item").Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find("title").First().Text())
		if title == "" {
			return
		}

		published, ok := parsePubDate(item.Find("pubdate").First().Text())
		if !ok {
			return
		}

		y, m, d := published.UTC().Date()
		items = append(items, contracts.NewsItem{
			Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Symbol:   MatchSymbol(title, symbols),
			Headline: title,
			Source:   channelSource,
		})
	})

	return items, nil
}

func parsePubDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MatchSymbol returns the first tracked symbol appearing as a whole word in text
func MatchSymbol(text string, symbols []string) string {
	upper := strings.ToUpper(text)
	words := strings.FieldsFunc(upper, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '&')
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	for _, s := range symbols {
		if _, ok := set[contracts.NormalizeSymbol(s)]; ok {
			return contracts.NormalizeSymbol(s)
		}
	}
	return ""
}
