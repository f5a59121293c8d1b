package geo

import (
	"context"
	"testing"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestUpsertValidation(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	cases := []struct {
		name     string
		id       string
		lng, lat float64
	}{
		{"empty id", "", 10, 10},
		{"lat out of range", "r1", 10, 91},
		{"lng out of range", "r1", 181, 10},
	}
	for _, tc := range cases {
		if err := idx.Upsert(ctx, tc.id, tc.lng, tc.lat); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
	if got := idx.ListAll(ctx); len(got) != 0 {
		t.Fatalf("rejected upserts must not register riders, got %v", got)
	}
}

func TestNearbyRadiusAndOrder(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	// 0.01 deg of latitude is roughly 1.11 km, so these sit at about
	// 1.1 km, 3.3 km, 8.9 km and 15.6 km from the origin.
	riders := map[string]float64{
		"near":    0.01,
		"mid":     0.03,
		"far":     0.08,
		"outside": 0.14,
	}
	for id, lat := range riders {
		if err := idx.Upsert(ctx, id, 0, lat); err != nil {
			t.Fatal(err)
		}
	}

	got := idx.Nearby(ctx, 0, 0, 10, 5)
	want := []string{"near", "mid", "far"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if got := idx.Nearby(ctx, 0, 0, 10, 2); len(got) != 2 || got[0] != "near" || got[1] != "mid" {
		t.Fatalf("limit=2 should truncate to two nearest, got %v", got)
	}
}

func TestNearbyEmptyWhenNoneQualify(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	if err := idx.Upsert(ctx, "r1", 0, 1); err != nil {
		t.Fatal(err)
	}
	if got := idx.Nearby(ctx, 0, 0, 5, 10); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestUpsertOverwrites(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	if err := idx.Upsert(ctx, "r1", 0, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, "r1", 0, 0.01); err != nil {
		t.Fatal(err)
	}
	if got := idx.ListAll(ctx); len(got) != 1 {
		t.Fatalf("expected one entry after overwrite, got %v", got)
	}
	if got := idx.Nearby(ctx, 0, 0, 5, 5); len(got) != 1 || got[0] != "r1" {
		t.Fatalf("query must reflect the latest position, got %v", got)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	if err := idx.Upsert(ctx, "r1", 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := idx.Remove(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if err := idx.Remove(ctx, "r1"); err != nil {
		t.Fatalf("removing an absent rider must not error: %v", err)
	}
	if got := idx.ListAll(ctx); len(got) != 0 {
		t.Fatalf("expected empty registry, got %v", got)
	}
}
