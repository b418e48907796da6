// Package knowledge resolves a bot's configured knowledge into a bounded
// context block for the current question: static text, cached URL fetches
// ranked by a term-overlap heuristic, or embedding-ranked page chunks.
package knowledge

import "github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"

// SourceKind tags the knowledge variant a bot resolves to.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceStatic
	SourceURLSimple
	SourceURLEmbed
)

// Source is the tagged variant the retrieval engine dispatches on.
type Source struct {
	Kind SourceKind

	// Static
	Text string

	// URLSimple / URLEmbed
	URLs       []string
	MaxPerReq  int
	CacheTTL   int // seconds
	EmbedModel string
	TopK       int
	ChunkChars int
}

// SourceFor derives the knowledge variant from a bot config. RAG-enabled
// URL retrieval takes precedence over static text; a bot with neither
// resolves to none.
func SourceFor(cfg *bot.Config) Source {
	if cfg.RAG.Enabled && len(cfg.KnowledgeURLs) > 0 {
		s := Source{
			URLs:       cfg.KnowledgeURLs,
			MaxPerReq:  cfg.RAG.MaxURLsPerRequest,
			CacheTTL:   cfg.RAG.CacheTTLSeconds,
			EmbedModel: cfg.RAG.EmbedModel,
			TopK:       cfg.RAG.TopK,
			ChunkChars: cfg.RAG.ChunkChars,
		}
		if cfg.RAG.Mode == bot.RAGEmbed {
			s.Kind = SourceURLEmbed
		} else {
			s.Kind = SourceURLSimple
		}
		return s
	}
	if cfg.KnowledgeText != "" {
		return Source{Kind: SourceStatic, Text: cfg.KnowledgeText}
	}
	return Source{Kind: SourceNone}
}
