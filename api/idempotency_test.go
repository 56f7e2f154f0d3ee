package api

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDeduper(t *testing.T) *RedisDeduper {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisDeduper(client, time.Hour)
}

func TestDeduperAddOnce(t *testing.T) {
	d := newTestDeduper(t)
	ctx := context.Background()

	added, err := d.Add(ctx, "tg-update", "42")
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = d.Add(ctx, "tg-update", "42")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatal("duplicate key must not be added")
	}
}

func TestDeduperScopesAreIndependent(t *testing.T) {
	d := newTestDeduper(t)
	ctx := context.Background()

	if added, _ := d.Add(ctx, "tg-update", "42"); !added {
		t.Fatal("first scope add failed")
	}
	if added, _ := d.Add(ctx, "other", "42"); !added {
		t.Fatal("same key in another scope must be accepted")
	}
}

func TestDeduperRemoveAllowsRetry(t *testing.T) {
	d := newTestDeduper(t)
	ctx := context.Background()

	if added, _ := d.Add(ctx, "tg-update", "7"); !added {
		t.Fatal("add failed")
	}
	if err := d.Remove(ctx, "tg-update", "7"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if added, _ := d.Add(ctx, "tg-update", "7"); !added {
		t.Fatal("key must be addable again after remove")
	}
}
