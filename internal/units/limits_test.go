package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitConverter(t *testing.T) {
	l := NewLimitConverter(NewConverter(Options{}))

	assert.Equal(t, 1.5, l.CoresFromPercent(150))
	assert.Equal(t, 150.0, l.PercentFromCores(1.5))
	assert.Equal(t, int64(954), l.MiBFromMB(1000))
	assert.Equal(t, int64(1074), l.MBFromMiB(1024))

	// unlimited sentinels survive both directions
	assert.Equal(t, int64(-1), l.MiBFromMB(-1))
	assert.Equal(t, int64(0), l.MBFromMiB(0))
	assert.Equal(t, 0.0, l.CoresFromPercent(0))
}

func TestLimitConverterLegacyRatio(t *testing.T) {
	l := NewLimitConverter(NewConverter(Options{LegacyRatio: true}))
	assert.Equal(t, int64(1024), l.MiBFromMB(1000))
	assert.Equal(t, int64(1000), l.MBFromMiB(1024))
}
