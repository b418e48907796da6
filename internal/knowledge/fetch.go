package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/kv"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

const (
	fetchTimeout = 8 * time.Second
	maxFetchBody = 512 * 1024
	// maxCachedChars bounds what one page contributes to the cache; the
	// per-page and total context caps are applied later at assembly.
	maxCachedChars = 24000
)

// Fetcher retrieves page text with a per-URL cache in the key-value store.
type Fetcher struct {
	store  kv.Store
	client *http.Client
}

func NewFetcher(store kv.Store) *Fetcher {
	return &Fetcher{
		store:  store,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// PageText returns extracted plain text for a URL, from cache unless
// bypassCache is set or the entry expired. Fresh fetches are cached with
// the bot's configured TTL.
func (f *Fetcher) PageText(ctx context.Context, pageURL string, ttl time.Duration, bypassCache bool) (string, error) {
	if !bypassCache {
		if cached, err := f.store.Get(ctx, kv.PageKey(pageURL)); err == nil {
			return cached, nil
		} else if !errors.Is(err, kv.ErrNotFound) {
			logx.Warn().Err(err).Str("url", pageURL).Msg("page cache read failed")
		}
	}

	text, err := f.fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	if err := f.store.Put(ctx, kv.PageKey(pageURL), text, ttl); err != nil {
		logx.Warn().Err(err).Str("url", pageURL).Msg("page cache write failed")
	}
	return text, nil
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("unsupported url %q", pageURL)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "client-chat-platform/1.0 (+knowledge-fetch)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %q: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %q: status %d", pageURL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBody)
	contentType := resp.Header.Get("Content-Type")

	var text string
	if strings.Contains(contentType, "text/html") {
		text = StripHTML(body)
	} else {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("read %q: %w", pageURL, err)
		}
		text = collapseWhitespace(string(raw))
	}

	return truncateRunes(text, maxCachedChars), nil
}

var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
}

// StripHTML reduces an HTML document to its visible text.
func StripHTML(r io.Reader) string {
	tok := html.NewTokenizer(r)
	var b strings.Builder
	skipDepth := 0

	for {
		switch tok.Next() {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tok.TagName()
			if skippedTags[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if skippedTags[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tok.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
