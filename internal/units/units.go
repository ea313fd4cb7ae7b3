// Package units converts byte-magnitude quantities and CPU representations between the
// remote panel's conventions and the local mirror's display units.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is a byte-magnitude symbol or one of the auto-selection sentinels.
type Unit string

const (
	B   Unit = "B"
	KB  Unit = "KB"
	MB  Unit = "MB"
	GB  Unit = "GB"
	TB  Unit = "TB"
	KiB Unit = "KiB"
	MiB Unit = "MiB"
	GiB Unit = "GiB"
	TiB Unit = "TiB"

	// Auto picks the largest decimal unit not exceeding the value.
	Auto Unit = "auto"
	// IAuto picks the largest binary unit not exceeding the value.
	IAuto Unit = "iauto"
)

// scale is the number of decimal digits kept by intermediate products and quotients.
const scale int32 = 10

// ErrInvalidUnit is returned for a unit symbol outside the magnitude table.
var ErrInvalidUnit = errors.New("units: invalid unit specified / 无效的单位")

var magnitudes = map[Unit]decimal.Decimal{
	B:   decimal.NewFromInt(1),
	KB:  decimal.NewFromInt(1_000),
	MB:  decimal.NewFromInt(1_000_000),
	GB:  decimal.NewFromInt(1_000_000_000),
	TB:  decimal.NewFromInt(1_000_000_000_000),
	KiB: decimal.NewFromInt(1 << 10),
	MiB: decimal.NewFromInt(1 << 20),
	GiB: decimal.NewFromInt(1 << 30),
	TiB: decimal.NewFromInt(1 << 40),
}

var (
	decimalScan = []Unit{TB, GB, MB, KB, B}
	binaryScan  = []Unit{TiB, GiB, MiB, KiB, B}

	mibToMB = mustQuo(1000, 1024)
	mbToMiB = mustQuo(1024, 1000)
)

// ParseUnit resolves a symbol, accepting the sentinels case-insensitively.
func ParseUnit(raw string) (Unit, error) {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case string(Auto):
		return Auto, nil
	case string(IAuto):
		return IAuto, nil
	}
	u := Unit(trimmed)
	if _, ok := magnitudes[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, raw)
	}
	return u, nil
}

// Magnitude returns the byte size of one u.
func (u Unit) Magnitude() (decimal.Decimal, bool) {
	m, ok := magnitudes[u]
	return m, ok
}

// Quantity is a converted value together with the unit it is expressed in.
type Quantity struct {
	Value decimal.Decimal
	Unit  Unit
}

// Float64 is the numeric view of the quantity.
func (q Quantity) Float64() float64 {
	f, _ := q.Value.Float64()
	return f
}

// Label renders "<value> <unit>", e.g. "1.54 GB".
func (q Quantity) Label() string {
	return q.Value.String() + " " + string(q.Unit)
}

// Format returns the label when includeUnit is set, otherwise the bare number.
func (q Quantity) Format(includeUnit bool) string {
	if includeUnit {
		return q.Label()
	}
	return q.Value.String()
}

// Options configure a Converter.
type Options struct {
	// LegacyRatio enables the direct 1000/1024 MiB<->MB ratio instead of the byte table.
	LegacyRatio bool
}

// Converter performs unit conversions with fixed-scale decimal arithmetic.
type Converter struct {
	legacyRatio bool
}

// NewConverter builds a converter.
func NewConverter(opts Options) Converter {
	return Converter{legacyRatio: opts.LegacyRatio}
}

// Convert expresses value (given in from) in to, rounded half away from zero to precision decimals.
func (c Converter) Convert(value decimal.Decimal, from, to Unit, precision int32) (Quantity, error) {
	if c.legacyRatio {
		switch {
		case from == MiB && to == MB:
			return Quantity{Value: value.Mul(mibToMB).Truncate(scale).Round(precision), Unit: MB}, nil
		case from == MB && to == MiB:
			return Quantity{Value: value.Mul(mbToMiB).Truncate(scale).Round(precision), Unit: MiB}, nil
		}
	}

	fromMag, ok := magnitudes[from]
	if !ok {
		return Quantity{}, fmt.Errorf("%w: from %q", ErrInvalidUnit, from)
	}
	bytes := value.Mul(fromMag).Truncate(scale)

	switch to {
	case Auto:
		return pick(bytes, decimalScan, precision), nil
	case IAuto:
		return pick(bytes, binaryScan, precision), nil
	}

	toMag, ok := magnitudes[to]
	if !ok {
		return Quantity{}, fmt.Errorf("%w: to %q", ErrInvalidUnit, to)
	}
	q, _ := bytes.QuoRem(toMag, scale)
	return Quantity{Value: q.Round(precision), Unit: to}, nil
}

// ConvertFloat is Convert for callers holding float64 values.
func (c Converter) ConvertFloat(value float64, from, to Unit, precision int32) (Quantity, error) {
	return c.Convert(decimal.NewFromFloat(value), from, to, precision)
}

// Convert uses a converter with default options.
func Convert(value decimal.Decimal, from, to Unit, precision int32) (Quantity, error) {
	return Converter{}.Convert(value, from, to, precision)
}

func pick(bytes decimal.Decimal, scan []Unit, precision int32) Quantity {
	for _, u := range scan {
		mag := magnitudes[u]
		if bytes.GreaterThanOrEqual(mag) {
			q, _ := bytes.QuoRem(mag, scale)
			return Quantity{Value: q.Round(precision), Unit: u}
		}
	}
	// zero or negative: raw byte count
	return Quantity{Value: bytes.Round(precision), Unit: B}
}

func mustQuo(a, b int64) decimal.Decimal {
	q, _ := decimal.NewFromInt(a).QuoRem(decimal.NewFromInt(b), scale)
	return q
}
