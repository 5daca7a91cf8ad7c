package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return rdb
}

func TestRedisRecorder_Record(t *testing.T) {
	rdb := newMiniRedis(t)
	rec := NewRedisRecorder(rdb)
	ctx := context.Background()

	event := SearchEvent{
		Query:       "ceramic mug",
		Zip:         "10001",
		Limit:       10,
		MaxPrice:    25,
		Sources:     []string{"etsy"},
		ResultCount: 4,
		DurationMS:  12,
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	}
	if err := rec.Record(ctx, event); err != nil {
		t.Fatalf("record: %v", err)
	}

	raw, err := rdb.LRange(ctx, KeyEvents, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 event, got %d", len(raw))
	}

	var got SearchEvent
	if err := json.Unmarshal([]byte(raw[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Query != "ceramic mug" || got.ResultCount != 4 {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestRedisRecorder_NewestFirst(t *testing.T) {
	rdb := newMiniRedis(t)
	rec := NewRedisRecorder(rdb)
	ctx := context.Background()

	for _, q := range []string{"first", "second", "third"} {
		if err := rec.Record(ctx, SearchEvent{Query: q}); err != nil {
			t.Fatalf("record %q: %v", q, err)
		}
	}

	raw, err := rdb.LIndex(ctx, KeyEvents, 0).Result()
	if err != nil {
		t.Fatalf("lindex: %v", err)
	}
	var got SearchEvent
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Query != "third" {
		t.Fatalf("head should be the newest event, got %q", got.Query)
	}
}

func TestRedisRecorder_NilClientIsNoop(t *testing.T) {
	var rec *RedisRecorder
	if err := rec.Record(context.Background(), SearchEvent{Query: "x"}); err != nil {
		t.Fatalf("nil recorder must be a no-op, got %v", err)
	}
}
