// Package search keeps a Redis document per work so listing and discovery
// can run without touching Postgres.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scholarsphere/config"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/platform/sentinel"

	"github.com/redis/go-redis/v9"
)

const indexKey = "works:index"

func NewClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

type RedisIndexer struct {
	Client *redis.Client
}

func NewRedisIndexer(client *redis.Client) *RedisIndexer {
	return &RedisIndexer{Client: client}
}

func (r *RedisIndexer) buildKey(uuid string) string {
	return fmt.Sprintf("work:%s", uuid)
}

// UpdateWork replaces the work's document with one built from its latest
// version.
func (r *RedisIndexer) UpdateWork(ctx context.Context, w *works.Work) error {
	key := r.buildKey(w.UUID)
	doc := Document(w)

	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, doc)
		pipe.SAdd(ctx, indexKey, w.UUID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index work %s: %w", w.UUID, err)
	}
	return nil
}

func (r *RedisIndexer) DeleteWork(ctx context.Context, uuid string) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.buildKey(uuid))
		pipe.SRem(ctx, indexKey, uuid)
		return nil
	})
	if err != nil {
		return fmt.Errorf("unindex work %s: %w", uuid, err)
	}
	return nil
}

// Get returns the indexed document for uuid.
func (r *RedisIndexer) Get(ctx context.Context, uuid string) (map[string]string, error) {
	doc, err := r.Client.HGetAll(ctx, r.buildKey(uuid)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("indexed work %s: %w", uuid, sentinel.ErrNotFound)
	}
	return doc, nil
}

func (r *RedisIndexer) Indexed(ctx context.Context) ([]string, error) {
	return r.Client.SMembers(ctx, indexKey).Result()
}

// Document flattens a work into the hash stored for it.
func Document(w *works.Work) map[string]any {
	doc := map[string]any{
		"id":         w.UUID,
		"work_type":  w.WorkType,
		"visibility": w.Visibility,
		"doi":        "",
		"updated_at": w.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if w.DOI != nil {
		doc["doi"] = *w.DOI
	}

	v := w.LatestVersion()
	if v == nil {
		return doc
	}
	names := make([]string, 0, len(v.Creators))
	for _, c := range v.Creators {
		names = append(names, c.DisplayName)
	}
	doc["version_id"] = v.UUID
	doc["title"] = v.Title
	doc["description"] = v.Description
	doc["state"] = string(v.State)
	doc["keywords"] = strings.Join(v.Keyword, "|")
	doc["creators"] = strings.Join(names, "|")
	doc["files"] = len(v.FileVersionMemberships)
	return doc
}
