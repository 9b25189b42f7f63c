package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mallocator/domain-mon/pkg/logger"
)

// fakeRedis keeps values in a map and can be told to fail
type fakeRedis struct {
	data   map[string]string
	err    error
	closed bool
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{data: map[string]string{}}
	backend := NewRedis(client, "mon:", logger.NewWithWriter(&bytes.Buffer{}))

	store, err := backend.LoadStore(ctx)
	if err != nil || store.Len() != 0 {
		t.Fatalf("LoadStore on empty redis = %v, %v", store, err)
	}
	cursor, err := backend.LoadCursor(ctx)
	if err != nil || cursor != "" {
		t.Fatalf("LoadCursor on empty redis = %q, %v", cursor, err)
	}

	store.Set("a.com", Known("2026-01-15"))
	store.Set("b.com", NotFound())
	if err := backend.SaveStore(ctx, store); err != nil {
		t.Fatalf("SaveStore failed: %v", err)
	}
	if err := backend.SaveCursor(ctx, "b.com"); err != nil {
		t.Fatalf("SaveCursor failed: %v", err)
	}

	if got := client.data["mon:expiries"]; got != `{"a.com":"2026-01-15","b.com":"ERR_NO_DATE"}` {
		t.Errorf("stored document = %s", got)
	}
	if got := client.data["mon:head"]; got != "b.com" {
		t.Errorf("stored cursor = %s", got)
	}

	loaded, err := backend.LoadStore(ctx)
	if err != nil {
		t.Fatalf("LoadStore failed: %v", err)
	}
	if rec, ok := loaded.Get("b.com"); !ok || !rec.IsNotFound() {
		t.Errorf("b.com = %v, %v; want NotFound", rec, ok)
	}
	if cursor, _ := backend.LoadCursor(ctx); cursor != "b.com" {
		t.Errorf("cursor = %s, want b.com", cursor)
	}

	if err := backend.Close(); err != nil || !client.closed {
		t.Errorf("Close = %v, client closed = %v", err, client.closed)
	}
}

func TestRedisErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	backend := NewRedis(&fakeRedis{data: map[string]string{}, err: boom}, "mon:", logger.NewWithWriter(&bytes.Buffer{}))

	if _, err := backend.LoadStore(ctx); !errors.Is(err, boom) {
		t.Errorf("LoadStore error = %v", err)
	}
	if err := backend.SaveStore(ctx, NewStore()); !errors.Is(err, boom) {
		t.Errorf("SaveStore error = %v", err)
	}
	if _, err := backend.LoadCursor(ctx); !errors.Is(err, boom) {
		t.Errorf("LoadCursor error = %v", err)
	}
	if err := backend.SaveCursor(ctx, "a.com"); !errors.Is(err, boom) {
		t.Errorf("SaveCursor error = %v", err)
	}
}
