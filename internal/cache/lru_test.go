package cache

import (
	"testing"
	"time"

	"github.com/trimrr/trimr/internal/models"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New(10, time.Minute)

	link := &models.Link{ID: 1, ShortCode: "abc1234", OriginalURL: "https://example.com"}
	c.Set("abc1234", link)

	got, found := c.Get("abc1234")
	if !found {
		t.Fatal("expected cache hit")
	}
	if got.ID != 1 || got.OriginalURL != "https://example.com" {
		t.Errorf("got %+v, want link with ID=1", got)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := New(10, time.Minute)

	_, found := c.Get("nonexistent")
	if found {
		t.Error("expected cache miss")
	}
}

func TestCache_InvalidateDropsBothKeys(t *testing.T) {
	c := New(10, time.Minute)

	link := &models.Link{ID: 1, ShortCode: "abc1234", CustomAlias: "launch"}
	c.Set("abc1234", link)
	c.Set("launch", link)

	c.Invalidate(link)

	if _, found := c.Get("abc1234"); found {
		t.Error("short code key survived invalidation")
	}
	if _, found := c.Get("launch"); found {
		t.Error("alias key survived invalidation")
	}
}

func TestCache_EntriesAgeOut(t *testing.T) {
	c := New(10, 20*time.Millisecond)

	c.Set("abc1234", &models.Link{ID: 1, ShortCode: "abc1234"})
	if _, found := c.Get("abc1234"); !found {
		t.Fatal("expected hit before TTL")
	}

	time.Sleep(40 * time.Millisecond)
	if _, found := c.Get("abc1234"); found {
		t.Error("expected entry to age out after TTL")
	}
}

func TestCache_EvictsLRU(t *testing.T) {
	c := New(2, time.Minute)

	c.Set("a", &models.Link{ID: 1})
	c.Set("b", &models.Link{ID: 2})
	// Touch "a" so "b" is the eviction candidate
	c.Get("a")
	c.Set("c", &models.Link{ID: 3})

	if _, found := c.Get("b"); found {
		t.Error("expected 'b' to be evicted")
	}
	if _, found := c.Get("a"); !found {
		t.Error("expected 'a' to still be cached")
	}
	if _, found := c.Get("c"); !found {
		t.Error("expected 'c' to be cached")
	}
}
