package cache

import (
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("source", "https://example.org/codemeta.json")
	b := Key("source", "https://example.org/codemeta.json")
	c := Key("token", "https://example.org/codemeta.json")

	if a != b {
		t.Errorf("expected stable keys, got %s and %s", a, b)
	}
	if a == c {
		t.Error("expected namespaces to produce different keys")
	}
	if !strings.HasPrefix(a, "codemeta2mp:v1:source:") {
		t.Errorf("unexpected key prefix: %s", a)
	}
	if Key("x", "a", "bc") == Key("x", "ab", "c") {
		t.Error("expected part boundaries to matter")
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Errorf("expected v, got %q (found=%v)", got, ok)
	}
	if s, ok := c.GetString("k"); !ok || s != "v" {
		t.Errorf("GetString: expected v, got %q", s)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 item, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestDiskCache_RoundTrip(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	key := Key("source", "doc")

	if err := c.Set(key, []byte(`{"name":"Frog"}`), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != `{"name":"Frog"}` {
		t.Errorf("unexpected value %s", got)
	}

	if err := c.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("expected deleting a missing key to succeed, got %v", err)
	}
}

func TestDiskCache_Expired(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	_ = c.Set("k", []byte("v"), time.Minute)
	c.now = func() time.Time { return now.Add(2 * time.Minute) }

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	disk := NewDiskCache(dir, time.Hour)
	_ = disk.Set("k", []byte("from-disk"), 0)

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok := c.Get("k")
	if !ok || string(got) != "from-disk" {
		t.Fatalf("expected disk hit, got %q", got)
	}
	if _, ok := c.memory.Get("k"); !ok {
		t.Error("expected disk hit to be promoted to memory")
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after clear")
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	_ = c.Set("k", []byte("v"), 0)
	if _, ok := c.Get("k"); ok {
		t.Error("expected Nop cache to never hit")
	}
}
