package kv

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key layout. Keeping every key constructor in one place makes the flat
// namespace auditable.

// BotKey addresses a bot's configuration record.
func BotKey(botID string) string {
	return "bot:" + botID
}

// BotIndexKey addresses the JSON list of known bot identifiers. The store
// may not support prefix listing cheaply, so the index is explicit.
func BotIndexKey() string {
	return "bots:index"
}

// RateKey addresses a fixed-window request counter.
func RateKey(botID, ip string, bucket int64) string {
	return fmt.Sprintf("rl:%s:%s:%d", botID, ip, bucket)
}

// BudgetKey addresses a per-bot daily usage counter. day is a UTC
// yyyy-mm-dd string.
func BudgetKey(botID, day, dimension string) string {
	return fmt.Sprintf("budget:%s:%s:%s", botID, day, dimension)
}

// PageKey addresses cached extracted text for a fetched URL.
func PageKey(url string) string {
	return "page:" + hashKey(url)
}

// EmbeddingKey addresses a cached embedding vector for (model, text).
func EmbeddingKey(model, text string) string {
	return "emb:" + hashKey(model+"|"+text)
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
