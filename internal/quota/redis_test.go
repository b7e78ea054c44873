package quota

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"swiftapply/internal/domain"
)

func TestCounterKeyScopedPerIdentityAndDay(t *testing.T) {
	a := counterKey("dev-1", "2026-03-01")
	b := counterKey("dev-1", "2026-03-02")
	c := counterKey("dev-2", "2026-03-01")
	if a == b || a == c {
		t.Fatalf("keys collide: %q %q %q", a, b, c)
	}
	if a != "quota:dev-1:2026-03-01" {
		t.Fatalf("key = %q", a)
	}
}

func TestRedisIncrementSurfacesConnectionErrors(t *testing.T) {
	// an unreachable backend must produce an error, never a silent grant
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	counters := NewRedisCounters(client, zerolog.Nop())
	_, ok, err := counters.Increment(context.Background(), domain.DeviceIdentity("dev-1"), "2026-03-01", 3)
	if err == nil {
		t.Fatal("Increment() returned no error against an unreachable backend")
	}
	if ok {
		t.Fatal("Increment() granted a unit against an unreachable backend")
	}
}
