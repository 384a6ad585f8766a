package storage

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestSoldOutMarker(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	trainID := time.Now().UnixNano()

	// Setup
	client.Del(ctx, soldOutKey(trainID))

	soldOut, err := adapter.IsSoldOut(ctx, trainID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if soldOut {
		t.Error("expected fresh train not sold out")
	}

	if err := adapter.MarkSoldOut(ctx, trainID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	soldOut, err = adapter.IsSoldOut(ctx, trainID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !soldOut {
		t.Error("expected train marked sold out")
	}

	ttl, _ := client.TTL(ctx, soldOutKey(trainID)).Result()
	if ttl <= 0 || ttl > soldOutKeyTTL {
		t.Errorf("expected ttl within %v, got %v", soldOutKeyTTL, ttl)
	}

	if err := adapter.ClearSoldOut(ctx, trainID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if soldOut, _ := adapter.IsSoldOut(ctx, trainID); soldOut {
		t.Error("expected marker cleared")
	}
}

func TestSoldOutMarker_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	trainID := time.Now().UnixNano()
	defer client.Del(ctx, soldOutKey(trainID))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := adapter.MarkSoldOut(ctx, trainID); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	n, _ := client.Exists(ctx, soldOutKey(trainID)).Result()
	if n != 1 {
		t.Errorf("expected exactly one marker key, got %d", n)
	}
}

func TestSoldOutKey(t *testing.T) {
	if got := soldOutKey(42); got != "soldout:42" {
		t.Errorf("expected soldout:42, got %s", got)
	}
}
