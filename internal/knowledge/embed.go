package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/kv"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/llm"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

// cachedEmbed returns the embedding for (model, text), consulting the
// key-value cache first. Vectors are cached as JSON float arrays under a
// hash of model and text.
func cachedEmbed(ctx context.Context, store kv.Store, embedder llm.Embedder, model, text string, ttl time.Duration) ([]float32, error) {
	key := kv.EmbeddingKey(model, text)

	if raw, err := store.Get(ctx, key); err == nil {
		var vec []float32
		if jerr := json.Unmarshal([]byte(raw), &vec); jerr == nil && len(vec) > 0 {
			return vec, nil
		}
		// corrupt entry: fall through and recompute
	} else if !errors.Is(err, kv.ErrNotFound) {
		logx.Warn().Err(err).Msg("embedding cache read failed")
	}

	vec, err := embedder.Embed(ctx, model, text)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(vec); err == nil {
		if perr := store.Put(ctx, key, string(raw), ttl); perr != nil {
			logx.Warn().Err(perr).Msg("embedding cache write failed")
		}
	}
	return vec, nil
}

// cosine returns the cosine similarity of two vectors, 0 when either is
// degenerate or the dimensions disagree.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
