package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T, prefix string) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheHelper(client, prefix), mr
}

type cachedTest struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestCacheHelper_SetGet(t *testing.T) {
	helper, mr := newTestHelper(t, "test:")
	ctx := context.Background()

	in := cachedTest{ID: 1, Title: "Incoterms"}
	if err := helper.Set(ctx, "id:1", in, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if !mr.Exists("test:id:1") {
		t.Fatal("key not stored under prefix")
	}

	var out cachedTest
	if err := helper.Get(ctx, "id:1", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out != in {
		t.Errorf("Get() = %+v, want %+v", out, in)
	}
}

func TestCacheHelper_GetMissing(t *testing.T) {
	helper, _ := newTestHelper(t, "test:")

	var out cachedTest
	err := helper.Get(context.Background(), "id:404", &out)
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("Get() error = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelper_ExistsAndTTL(t *testing.T) {
	helper, mr := newTestHelper(t, "block:")
	ctx := context.Background()

	if err := helper.SetString(ctx, "violation:user-1", "2026-03-01T00:00:00Z", 24*time.Hour); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}

	exists, err := helper.Exists(ctx, "violation:user-1")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v; want true", exists, err)
	}

	ttl, err := helper.TTL(ctx, "violation:user-1")
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("TTL() = %v, want within (0, 24h]", ttl)
	}

	// Expiry removes the key.
	mr.FastForward(25 * time.Hour)
	exists, err = helper.Exists(ctx, "violation:user-1")
	if err != nil || exists {
		t.Errorf("Exists() after expiry = %v, %v; want false", exists, err)
	}
}

func TestCacheHelper_Delete(t *testing.T) {
	helper, mr := newTestHelper(t, "test:")
	ctx := context.Background()

	for _, key := range []string{"id:1", "id:2", "id:3"} {
		if err := helper.SetString(ctx, key, "x", time.Minute); err != nil {
			t.Fatalf("SetString(%s) error = %v", key, err)
		}
	}

	if err := helper.Delete(ctx, "id:1", "id:2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if mr.Exists("test:id:1") || mr.Exists("test:id:2") {
		t.Error("deleted keys still present")
	}
	if !mr.Exists("test:id:3") {
		t.Error("untouched key was deleted")
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	helper, mr := newTestHelper(t, "test:")
	ctx := context.Background()

	for _, key := range []string{"id:1", "id:1:stats", "list:page1"} {
		if err := helper.SetString(ctx, key, "x", time.Minute); err != nil {
			t.Fatalf("SetString(%s) error = %v", key, err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "id:1*"); err != nil {
		t.Fatalf("InvalidatePattern() error = %v", err)
	}

	if mr.Exists("test:id:1") || mr.Exists("test:id:1:stats") {
		t.Error("matching keys survived invalidation")
	}
	if !mr.Exists("test:list:page1") {
		t.Error("non-matching key was invalidated")
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	helper, _ := newTestHelper(t, "test:")
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return cachedTest{ID: 7, Title: "Letters of Credit"}, nil
	}

	var first cachedTest
	if err := helper.CacheOrExecute(ctx, "id:7", &first, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute() error = %v", err)
	}
	if calls != 1 || first.Title != "Letters of Credit" {
		t.Fatalf("first call: calls=%d result=%+v", calls, first)
	}

	// The async cache write needs a moment to land.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		var probe cachedTest
		if err := helper.Get(ctx, "id:7", &probe); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	var second cachedTest
	if err := helper.CacheOrExecute(ctx, "id:7", &second, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute() second call error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch ran %d times, want 1 (second call served from cache)", calls)
	}
	if second != first {
		t.Errorf("second call = %+v, want %+v", second, first)
	}
}

func TestCacheHelper_NilClientDegradesGracefully(t *testing.T) {
	helper := NewCacheHelper(nil, "test:")
	ctx := context.Background()

	if err := helper.Set(ctx, "id:1", cachedTest{}, time.Minute); err != nil {
		t.Errorf("Set() with nil client error = %v, want nil", err)
	}

	var out cachedTest
	if err := helper.Get(ctx, "id:1", &out); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Get() with nil client error = %v, want ErrCacheNotAvailable", err)
	}

	// CacheOrExecute still serves the fetch result.
	var fetched cachedTest
	err := helper.CacheOrExecute(ctx, "id:1", &fetched, time.Minute, func() (interface{}, error) {
		return cachedTest{ID: 9, Title: "Customs Valuation"}, nil
	})
	if err != nil {
		t.Fatalf("CacheOrExecute() with nil client error = %v", err)
	}
	if fetched.ID != 9 {
		t.Errorf("fetched = %+v, want ID 9", fetched)
	}
}

func TestCacheManager_ViolationBlock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cm := NewCacheManager(client)
	ctx := context.Background()

	blocked, _, err := cm.GetViolationBlock(ctx, "user-1")
	if err != nil || blocked {
		t.Fatalf("GetViolationBlock() before set = %v, %v; want false", blocked, err)
	}

	if err := cm.SetViolationBlock(ctx, "user-1", 24*time.Hour); err != nil {
		t.Fatalf("SetViolationBlock() error = %v", err)
	}

	blocked, remaining, err := cm.GetViolationBlock(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetViolationBlock() error = %v", err)
	}
	if !blocked {
		t.Fatal("user should be blocked")
	}
	if remaining <= 0 || remaining > 24*time.Hour {
		t.Errorf("remaining = %v, want within (0, 24h]", remaining)
	}

	mr.FastForward(25 * time.Hour)
	blocked, _, err = cm.GetViolationBlock(ctx, "user-1")
	if err != nil || blocked {
		t.Errorf("GetViolationBlock() after expiry = %v, %v; want false", blocked, err)
	}
}

func TestCacheManager_ViolationBlock_NoRedis(t *testing.T) {
	cm := NewCacheManager(nil)
	ctx := context.Background()

	if err := cm.SetViolationBlock(ctx, "user-1", 24*time.Hour); err != nil {
		t.Errorf("SetViolationBlock() with nil client error = %v, want nil", err)
	}

	blocked, _, err := cm.GetViolationBlock(ctx, "user-1")
	if err != nil || blocked {
		t.Errorf("GetViolationBlock() with nil client = %v, %v; want false, nil", blocked, err)
	}
}
