package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/storage/memory"
)

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), nil)
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { clock = clock.Add(time.Hour); return clock }

	first, err := svc.Create(ctx, "s1", "ana", 0, "  Excelente trabajo ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Rating != DefaultRating || first.Comment != "Excelente trabajo" || first.ClientName != "ana" {
		t.Fatalf("unexpected review: %+v", first)
	}
	if _, err := svc.Create(ctx, "s1", "bo", 3, "Bien"); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := svc.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ClientName != "bo" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	for _, tc := range []struct {
		name    string
		user    string
		rating  int
		comment string
	}{
		{"empty comment", "ana", 5, "  "},
		{"rating too high", "ana", 6, "x"},
		{"negative rating", "ana", -1, "x"},
		{"anonymous", "", 5, "x"},
	} {
		if _, err := svc.Create(ctx, "s1", tc.user, tc.rating, tc.comment); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
