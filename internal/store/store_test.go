// internal/store/store_test.go
package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Save(ctx, "campaigns", []byte(`[{"id":"c1"}]`))
	require.NoError(t, err)

	data, err := s.Load(ctx, "campaigns")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"c1"}]`, string(data))
}

func TestMemoryStoreMissingKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Load(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, "profile", []byte(`{"name":"Ana"}`)))

	data, err := s.Load(ctx, "profile")
	require.NoError(t, err)
	data[0] = 'X'

	again, err := s.Load(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ana"}`, string(again))
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, "events", []byte(`[]`)))
	require.NoError(t, s.Delete(ctx, "events"))

	_, err := s.Load(ctx, "events")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error
	assert.NoError(t, s.Delete(ctx, "events"))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
		data string
	}{
		{name: "json object", key: "profile", data: `{"name":"Ana","streak":4}`},
		{name: "json array", key: "delivery_records", data: `[{"id":"n1","status":"sent"}]`},
		{name: "empty payload", key: "events", data: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, tt.key, []byte(tt.data)))

			got, err := s.Load(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(got))
		})
	}
}

func TestLocalStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "campaigns", []byte(`["old"]`)))
	require.NoError(t, s.Save(ctx, "campaigns", []byte(`["new"]`)))

	got, err := s.Load(ctx, "campaigns")
	require.NoError(t, err)
	assert.Equal(t, `["new"]`, string(got))
}

func TestLocalStoreMissingKey(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "nope"))
}
