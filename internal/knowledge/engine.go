package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/kv"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/llm"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

const (
	// maxPageExcerptChars caps what a single page contributes.
	maxPageExcerptChars = 6000
	// maxContextChars caps the whole assembled block, independent of
	// per-page caps, so the prompt assembler receives a bounded input no
	// matter how many sources matched.
	maxContextChars = 16000

	fetchConcurrency = 4
	embedConcurrency = 8
)

// Engine resolves a bot's knowledge source into a context block for one
// question. Any single source failure is logged and skipped; retrieval as a
// whole never fails the request.
type Engine struct {
	store    kv.Store
	fetcher  *Fetcher
	embedder llm.Embedder
}

func NewEngine(store kv.Store, embedder llm.Embedder) *Engine {
	return &Engine{
		store:    store,
		fetcher:  NewFetcher(store),
		embedder: embedder,
	}
}

// Retrieve returns the knowledge context block for the question, possibly
// empty.
func (e *Engine) Retrieve(ctx context.Context, cfg *bot.Config, question, requestID string) string {
	src := SourceFor(cfg)

	switch src.Kind {
	case SourceStatic:
		return truncateRunes(src.Text, maxContextChars)
	case SourceURLSimple:
		return e.retrieveSimple(ctx, src, question, requestID)
	case SourceURLEmbed:
		return e.retrieveEmbed(ctx, src, question, requestID)
	default:
		return ""
	}
}

type page struct {
	url  string
	text string
}

func (e *Engine) retrieveSimple(ctx context.Context, src Source, question, requestID string) string {
	urls := RankURLs(question, src.URLs, src.MaxPerReq)
	pages := e.fetchAll(ctx, urls, time.Duration(src.CacheTTL)*time.Second, requestID)
	return assembleExcerpts(pages)
}

func (e *Engine) retrieveEmbed(ctx context.Context, src Source, question, requestID string) string {
	urls := RankURLs(question, src.URLs, src.MaxPerReq)
	ttl := time.Duration(src.CacheTTL) * time.Second
	pages := e.fetchAll(ctx, urls, ttl, requestID)
	if len(pages) == 0 {
		return ""
	}

	// If the question cannot be embedded the raw excerpts still make a
	// useful context; degrading beats failing the whole request.
	qvec, err := cachedEmbed(ctx, e.store, e.embedder, src.EmbedModel, question, ttl)
	if err != nil {
		logx.Warn().Err(err).Str("request_id", requestID).Msg("question embedding failed, degrading to excerpts")
		return assembleExcerpts(pages)
	}

	type chunk struct {
		url   string
		text  string
		score float64
	}
	var chunks []chunk
	for _, p := range pages {
		for _, c := range SplitChunks(p.text, src.ChunkChars) {
			chunks = append(chunks, chunk{url: p.url, text: c})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := cachedEmbed(gctx, e.store, e.embedder, src.EmbedModel, chunks[i].text, ttl)
			if err != nil {
				// leave score at zero; the chunk just won't rank
				logx.Warn().Err(err).Str("request_id", requestID).Str("url", chunks[i].url).Msg("chunk embedding failed")
				chunks[i].score = -1
				return nil
			}
			chunks[i].score = cosine(qvec, vec)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; partial failures tolerated

	ranked := make([]chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.score >= 0 {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > src.TopK {
		ranked = ranked[:src.TopK]
	}

	var b strings.Builder
	b.WriteString("Relevant website content (ranked by similarity to the question):\n")
	for _, c := range ranked {
		entry := fmt.Sprintf("\n[Source: %s | relevance %.2f]\n%s\n", c.url, c.score, c.text)
		if b.Len()+len(entry) > maxContextChars {
			break
		}
		b.WriteString(entry)
	}
	if len(ranked) == 0 {
		return ""
	}
	return truncateRunes(b.String(), maxContextChars)
}

// fetchAll fetches page text for each URL concurrently, preserving input
// order in the result. Failed fetches are logged and skipped.
func (e *Engine) fetchAll(ctx context.Context, urls []string, ttl time.Duration, requestID string) []page {
	texts := make([]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			text, err := e.fetcher.PageText(gctx, u, ttl, false)
			if err != nil {
				logx.Warn().Err(err).Str("request_id", requestID).Str("url", u).Msg("knowledge fetch failed, skipping")
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]page, 0, len(urls))
	for i, u := range urls {
		if strings.TrimSpace(texts[i]) != "" {
			pages = append(pages, page{url: u, text: texts[i]})
		}
	}
	return pages
}

func assembleExcerpts(pages []page) string {
	if len(pages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant website content:\n")
	for _, p := range pages {
		entry := fmt.Sprintf("\n[Source: %s]\n%s\n", p.url, truncateRunes(p.text, maxPageExcerptChars))
		if b.Len()+len(entry) > maxContextChars {
			break
		}
		b.WriteString(entry)
	}
	return truncateRunes(b.String(), maxContextChars)
}

// RefreshCache force-refetches every configured knowledge URL for a bot,
// bypassing and rewriting the page cache. Returns the number of pages
// refreshed and the URLs that failed.
func (e *Engine) RefreshCache(ctx context.Context, cfg *bot.Config) (int, []string) {
	ttl := time.Duration(cfg.RAG.CacheTTLSeconds) * time.Second

	var (
		refreshed int
		failed    []string
	)
	for _, u := range cfg.KnowledgeURLs {
		if _, err := e.fetcher.PageText(ctx, u, ttl, true); err != nil {
			logx.Warn().Err(err).Str("bot_id", cfg.ID).Str("url", u).Msg("knowledge refresh failed")
			failed = append(failed, u)
			continue
		}
		refreshed++
	}
	return refreshed, failed
}
