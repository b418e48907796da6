package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/kv"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

// ErrNotFound is returned when no config exists for a bot identifier.
var ErrNotFound = errors.New("bot: not found")

// Registry persists bot configs in the key-value store. The admin path is
// the sole writer of a given record; concurrent writes are last-write-wins
// with no merge. Chat-path readers never mutate.
type Registry struct {
	store kv.Store
}

func NewRegistry(store kv.Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Get(ctx context.Context, botID string) (*Config, error) {
	raw, err := r.store.Get(ctx, kv.BotKey(botID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decode bot %q: %w", botID, err)
	}
	return &cfg, nil
}

// Upsert normalizes the payload against any existing record and stores the
// result. It returns the stored config.
func (r *Registry) Upsert(ctx context.Context, input map[string]any) (*Config, error) {
	id := cleanID(asString(input, "id"))
	if id == "" {
		return nil, fmt.Errorf("bot id is required")
	}

	existing, err := r.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	cfg, err := Normalize(input, existing)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode bot %q: %w", id, err)
	}
	if err := r.store.Put(ctx, kv.BotKey(id), string(raw), 0); err != nil {
		return nil, err
	}
	if err := r.indexAdd(ctx, id); err != nil {
		// The record itself is stored; a stale index only affects listing.
		logx.Warn().Err(err).Str("bot_id", id).Msg("failed to update bot index")
	}
	return cfg, nil
}

func (r *Registry) Delete(ctx context.Context, botID string) error {
	if err := r.store.Delete(ctx, kv.BotKey(botID)); err != nil {
		return err
	}
	return r.indexRemove(ctx, botID)
}

// List returns all known bot identifiers, sorted. The index is an explicit
// record because the underlying store may not support prefix scans cheaply.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	ids, err := r.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Registry) readIndex(ctx context.Context) ([]string, error) {
	raw, err := r.store.Get(ctx, kv.BotIndexKey())
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode bot index: %w", err)
	}
	return ids, nil
}

func (r *Registry) writeIndex(ctx context.Context, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, kv.BotIndexKey(), string(raw), 0)
}

func (r *Registry) indexAdd(ctx context.Context, botID string) error {
	ids, err := r.readIndex(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == botID {
			return nil
		}
	}
	return r.writeIndex(ctx, append(ids, botID))
}

func (r *Registry) indexRemove(ctx context.Context, botID string) error {
	ids, err := r.readIndex(ctx)
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, id := range ids {
		if id != botID {
			out = append(out, id)
		}
	}
	return r.writeIndex(ctx, out)
}
