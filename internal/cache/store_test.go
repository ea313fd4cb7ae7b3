package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	root := NewStore(Options{DefaultTTL: time.Minute})
	status := root.Namespace("status")
	eggs := root.Namespace("egg")

	status.SetString(ctx, "abc", "running", 0)
	_, ok := eggs.GetString(ctx, "abc")
	assert.False(t, ok)

	got, ok := status.GetString(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, "running", got)

	status.Delete(ctx, "abc")
	_, ok = status.GetString(ctx, "abc")
	assert.False(t, ok)
}

func TestJSONValues(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Options{})

	type export struct {
		Name string `json:"name"`
	}
	require.NoError(t, store.SetJSON(ctx, "egg", export{Name: "Paper"}, time.Minute))

	var out export
	found, err := store.GetJSON(ctx, "egg", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Paper", out.Name)
	assert.Equal(t, 1, store.ItemCount())
}
