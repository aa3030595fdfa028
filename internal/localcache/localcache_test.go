package localcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type row struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	in := []*row{{ID: "1", Name: "milk"}, {ID: "2", Name: "bread"}}
	if err := c.PutCollection(ctx, "shopping_item", "user-a", in); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}

	var out []*row
	if err := c.GetCollection(ctx, "shopping_item", "user-a", &out); err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if len(out) != 2 || out[0].Name != "milk" || out[1].Name != "bread" {
		t.Errorf("round trip = %+v", out)
	}
}

func TestPutReplaces(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.PutCollection(ctx, "task", "user-a", []*row{{ID: "1"}}); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}
	if err := c.PutCollection(ctx, "task", "user-a", []*row{{ID: "2"}, {ID: "3"}}); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}

	var out []*row
	if err := c.GetCollection(ctx, "task", "user-a", &out); err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if len(out) != 2 || out[0].ID != "2" {
		t.Errorf("replacement = %+v", out)
	}
}

func TestGetMissing(t *testing.T) {
	c := openTestCache(t)

	var out []*row
	err := c.GetCollection(context.Background(), "task", "nobody", &out)
	if !errors.Is(err, ErrNotCached) {
		t.Errorf("err = %v, want ErrNotCached", err)
	}
}

func TestKeysAreScoped(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.PutCollection(ctx, "task", "user-a", []*row{{ID: "a"}}); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}
	if err := c.PutCollection(ctx, "task", "user-b", []*row{{ID: "b"}}); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}
	if err := c.PutCollection(ctx, "habit", "user-a", []*row{{ID: "h"}}); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}

	var out []*row
	if err := c.GetCollection(ctx, "task", "user-a", &out); err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if len(out) != 1 || out[0].ID != "a" {
		t.Errorf("got %+v, want user-a's tasks only", out)
	}
}

func TestDeleteUser(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.PutCollection(ctx, "task", "user-a", []*row{{ID: "a"}}); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}
	if err := c.PutCollection(ctx, "habit", "user-a", []*row{{ID: "h"}}); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}
	if err := c.PutCollection(ctx, "task", "user-b", []*row{{ID: "b"}}); err != nil {
		t.Fatalf("PutCollection: %v", err)
	}

	if err := c.DeleteUser(ctx, "user-a"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	var out []*row
	if err := c.GetCollection(ctx, "task", "user-a", &out); !errors.Is(err, ErrNotCached) {
		t.Errorf("user-a tasks err = %v, want ErrNotCached", err)
	}
	if err := c.GetCollection(ctx, "habit", "user-a", &out); !errors.Is(err, ErrNotCached) {
		t.Errorf("user-a habits err = %v, want ErrNotCached", err)
	}
	if err := c.GetCollection(ctx, "task", "user-b", &out); err != nil {
		t.Errorf("user-b tasks should survive: %v", err)
	}
}
