package directory

import (
	"context"
	"testing"
)

func TestUpsertReplacesSessionHandle(t *testing.T) {
	tab := NewTable()
	ctx := context.Background()
	if err := tab.Upsert(ctx, RiderInfo{ID: "r1", Name: "Asha", SessionID: "s-old"}); err != nil {
		t.Fatal(err)
	}
	if err := tab.Upsert(ctx, RiderInfo{ID: "r1", Name: "Asha", SessionID: "s-new"}); err != nil {
		t.Fatal(err)
	}
	info, ok := tab.Get(ctx, "r1")
	if !ok {
		t.Fatal("rider not found")
	}
	if info.SessionID != "s-new" {
		t.Fatalf("expected replaced session handle, got %q", info.SessionID)
	}
}

func TestGetAllSkipsRidersWithoutMetadata(t *testing.T) {
	tab := NewTable()
	ctx := context.Background()
	// r2 has a geo entry but its metadata has not arrived yet: present in
	// the id list, absent (or nameless) in the directory.
	if err := tab.Upsert(ctx, RiderInfo{ID: "r1", Name: "Asha", SessionID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if err := tab.Upsert(ctx, RiderInfo{ID: "r3", SessionID: "s3"}); err != nil {
		t.Fatal(err)
	}

	got := tab.GetAll(ctx, []string{"r1", "r2", "r3"})
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected only r1 to be visible, got %+v", got)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	tab := NewTable()
	ctx := context.Background()
	if err := tab.Upsert(ctx, RiderInfo{ID: "r1", Name: "Asha"}); err != nil {
		t.Fatal(err)
	}
	if err := tab.Delete(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if err := tab.Delete(ctx, "r1"); err != nil {
		t.Fatalf("deleting an absent rider must not error: %v", err)
	}
	if _, ok := tab.Get(ctx, "r1"); ok {
		t.Fatal("rider still present after delete")
	}
}
