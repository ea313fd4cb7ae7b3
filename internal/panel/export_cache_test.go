package panel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/panelmirror/internal/cache"
)

type countingExporter struct {
	calls int
	err   error
}

func (c *countingExporter) FetchEggExport(_ context.Context, url string) (*EggExport, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &EggExport{Name: url, Variables: []EggExportVariable{{EnvVariable: "A", Rules: "required"}}}, nil
}

func TestCachedExporterMemoisesByURL(t *testing.T) {
	next := &countingExporter{}
	exporter := NewCachedExporter(next, cache.NewStore(cache.Options{}), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		export, err := exporter.FetchEggExport(ctx, "https://eggs.example/paper.json")
		require.NoError(t, err)
		assert.Equal(t, "https://eggs.example/paper.json", export.Name)
		assert.Equal(t, Rules("required"), export.Variables[0].Rules)
	}
	assert.Equal(t, 1, next.calls)

	_, err := exporter.FetchEggExport(ctx, "https://eggs.example/other.json")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedExporterDoesNotCacheFailures(t *testing.T) {
	next := &countingExporter{err: errors.New("boom")}
	exporter := NewCachedExporter(next, cache.NewStore(cache.Options{}), time.Minute)
	ctx := context.Background()

	_, err := exporter.FetchEggExport(ctx, "u")
	require.Error(t, err)
	_, err = exporter.FetchEggExport(ctx, "u")
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}
