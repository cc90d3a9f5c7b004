package datalayer_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/DragonOfMath/discord.io/internal/datalayer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := datalayer.NewMemoryStorage()
	key := datalayer.ClipKey("airhorn")

	_, err := s.Get(ctx, key)
	assert.ErrorIs(t, err, datalayer.ErrNotFound)

	require.NoError(t, s.Put(ctx, key, strings.NewReader("frames"), datalayer.PutOptions{
		Size:        6,
		ContentType: datalayer.ClipContentType,
	}))

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(got))

	ct, ok := s.ContentType(key)
	assert.True(t, ok)
	assert.Equal(t, datalayer.ClipContentType, ct)
}

func TestMemoryStorage_Put(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{name: "declared size", size: 4},
		{name: "unknown size", size: -1},
		{name: "short read", size: 10, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := datalayer.NewMemoryStorage()
			err := s.Put(context.Background(), "k", strings.NewReader("data"), datalayer.PutOptions{Size: tt.size})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
