package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"custodyledger/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"lot": "100"}
	info, err := s.Put(ctx, "reference/item.pdf", bytes.NewReader([]byte("leaflet")), core.PutOptions{ContentType: "application/pdf", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" || info.Metadata["lot"] != "100" {
		t.Fatalf("unexpected info %+v", info)
	}
	meta["lot"] = "mutated"
	if _, err := s.Put(ctx, "reference/item.pdf", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "reference/item.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "leaflet" || got.Metadata["lot"] != "100" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}

	if _, err := s.Put(ctx, "other/x", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := s.List(ctx, "reference/")
	if err != nil || len(list) != 1 || list[0].Key != "reference/item.pdf" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
	if all, _ := s.List(ctx, ""); len(all) != 2 {
		t.Fatalf("expected two entries, got %d", len(all))
	}

	if ok, _ := s.Delete(ctx, "reference/item.pdf"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "reference/item.pdf"); ok {
		t.Fatalf("second delete should report missing blob")
	}
	if _, err := s.Head(ctx, "reference/item.pdf"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, _, err := s.Get(ctx, "reference/item.pdf"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}

func TestPutRejectsEmptyKey(t *testing.T) {
	if _, err := New().Put(context.Background(), "  ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}
