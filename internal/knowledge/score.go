package knowledge

import (
	"net/url"
	"sort"
	"strings"
	"unicode"
)

// Path keywords that tend to answer the questions website visitors actually
// ask; their presence in a URL path earns a small unconditional boost on top
// of question-term overlap.
var boostKeywords = []string{
	"pricing", "price", "plans", "contact", "about",
	"privacy", "terms", "faq", "help", "support",
	"docs", "shipping", "returns",
}

const (
	termHitScore = 2
	boostScore   = 1
)

// RankURLs orders the configured URLs by relevance to the question and
// returns at most max of them. The heuristic only ranks, never filters:
// when nothing scores above zero the configured order decides, so a bot
// with URLs and a positive cap always gets candidates. Ties preserve
// configured order (stable sort).
func RankURLs(question string, urls []string, max int) []string {
	if max <= 0 || len(urls) == 0 {
		return nil
	}

	terms := questionTerms(question)

	type scored struct {
		url   string
		score int
	}
	ranked := make([]scored, 0, len(urls))
	for _, u := range urls {
		ranked = append(ranked, scored{url: u, score: scorePath(pathOf(u), terms)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.url
	}
	return out
}

func scorePath(path string, terms []string) int {
	score := 0
	for _, t := range terms {
		if strings.Contains(path, t) {
			score += termHitScore
		}
	}
	for _, kw := range boostKeywords {
		if strings.Contains(path, kw) {
			score += boostScore
		}
	}
	return score
}

// questionTerms tokenizes the question into lowercase terms of three or
// more characters; shorter tokens hit too many path substrings to rank
// anything usefully.
func questionTerms(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(u.Path + "?" + u.RawQuery)
}
