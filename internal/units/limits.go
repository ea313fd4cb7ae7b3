package units

import "github.com/shopspring/decimal"

// LimitConverter translates server limits between panel units (cpu percent, MB)
// and local units (cores, MiB). Values ≤ 0 mean "unlimited" and pass through untouched.
type LimitConverter struct {
	conv Converter
}

// NewLimitConverter wraps conv for limit translation.
func NewLimitConverter(conv Converter) LimitConverter {
	return LimitConverter{conv: conv}
}

// CoresFromPercent turns 150 into 1.5.
func (l LimitConverter) CoresFromPercent(percent float64) float64 {
	if percent <= 0 {
		return percent
	}
	return ConvertCPU(decimal.NewFromFloat(percent), PercentToCore, DefaultCPUPrecision).InexactFloat64()
}

// PercentFromCores turns 1.5 into 150.
func (l LimitConverter) PercentFromCores(cores float64) float64 {
	if cores <= 0 {
		return cores
	}
	return ConvertCPU(decimal.NewFromFloat(cores), CoreToPercent, DefaultCPUPrecision).InexactFloat64()
}

// MiBFromMB rounds to whole MiB.
func (l LimitConverter) MiBFromMB(mb int64) int64 {
	return l.whole(mb, MB, MiB)
}

// MBFromMiB rounds to whole MB.
func (l LimitConverter) MBFromMiB(mib int64) int64 {
	return l.whole(mib, MiB, MB)
}

func (l LimitConverter) whole(v int64, from, to Unit) int64 {
	if v <= 0 {
		return v
	}
	q, err := l.conv.Convert(decimal.NewFromInt(v), from, to, 0)
	if err != nil {
		return v
	}
	return q.Value.IntPart()
}
