package gallery

import (
	"context"
	"testing"
	"time"

	domain "github.com/R3E-Network/studio_layer/internal/app/domain/gallery"
	"github.com/R3E-Network/studio_layer/internal/app/storage/memory"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeds(t *testing.T) {
	items := Seeds("s1")
	require.Len(t, items, 8)
	assert.Equal(t, "s1-seed-1", items[0].ID)
	assert.Equal(t, "https://picsum.photos/id/101/500/500", items[0].Src)
	assert.Equal(t, "Lobo Geométrico", items[0].Alt)
	assert.Equal(t, "https://picsum.photos/id/117/500/500", items[7].Src)
	for _, it := range items {
		assert.True(t, knownStyle(it.Style), it.Style)
		_, err := time.Parse(dateLayout, it.Date)
		assert.NoError(t, err)
	}
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), nil)
	svc.now = func() time.Time { return time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC) }

	_, err := svc.Save(ctx, "s1", SaveRequest{Src: "data:image/png;base64,AA==", Alt: "  "})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	item, err := svc.Save(ctx, "s1", SaveRequest{Src: "data:image/png;base64,AA==", Alt: " Dragón ", Style: domain.StyleBlackwork})
	require.NoError(t, err)
	assert.Equal(t, "Dragón", item.Alt)
	assert.Equal(t, "2024-07-02", item.Date)
	assert.Equal(t, "image", item.Type)

	list, err := svc.List(ctx, "s1", Query{})
	require.NoError(t, err)
	require.Len(t, list, 9)
	assert.Equal(t, item.ID, list[0].ID)

	other, err := svc.List(ctx, "s2", Query{})
	require.NoError(t, err)
	assert.Len(t, other, 8)
}

func TestListFilterAndSort(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), nil)

	blackwork, err := svc.List(ctx, "s1", Query{Style: domain.StyleBlackwork})
	require.NoError(t, err)
	require.Len(t, blackwork, 2)

	newest, err := svc.List(ctx, "s1", Query{Sort: SortNewest})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", newest[0].Date)
	assert.Equal(t, "2023-09-05", newest[len(newest)-1].Date)

	oldest, err := svc.List(ctx, "s1", Query{Sort: SortOldest})
	require.NoError(t, err)
	assert.Equal(t, "2023-09-05", oldest[0].Date)

	_, err = svc.List(ctx, "s1", Query{Sort: "random"})
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), nil)

	n, err := svc.Seed(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = svc.Seed(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	list, err := svc.List(ctx, "s1", Query{})
	require.NoError(t, err)
	assert.Len(t, list, 8)
}
