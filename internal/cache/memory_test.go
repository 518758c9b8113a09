package cache

import (
	"context"
	"testing"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "road", "roster", []byte("hello")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := c.Get(ctx, "road", "roster")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || string(v) != "hello" {
		t.Errorf("Get() = (%q, %v), want (hello, true)", v, ok)
	}
}

func TestMemoryCacheGetMissingNamespaceOrKey(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "road", "roster"); ok || err != nil {
		t.Errorf("Get(missing namespace) = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	_ = c.Set(ctx, "road", "roster", []byte("x"))
	if _, ok, err := c.Get(ctx, "road", "other-key"); ok || err != nil {
		t.Errorf("Get(missing key) = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestMemoryCacheClearRemovesOnlyItsNamespace(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "road", "roster", []byte("road-data"))
	_ = c.Set(ctx, "cyclocross", "roster", []byte("cx-data"))

	if err := c.Clear(ctx, "road"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, ok, _ := c.Get(ctx, "road", "roster"); ok {
		t.Error("expected road namespace to be cleared")
	}
	v, ok, _ := c.Get(ctx, "cyclocross", "roster")
	if !ok || string(v) != "cx-data" {
		t.Error("expected cyclocross namespace to survive clearing road")
	}
}

func TestMemoryCacheClearUnknownNamespaceIsNotAnError(t *testing.T) {
	c := NewMemory()
	if err := c.Clear(context.Background(), "nonexistent"); err != nil {
		t.Errorf("Clear(nonexistent) error = %v, want nil", err)
	}
}
