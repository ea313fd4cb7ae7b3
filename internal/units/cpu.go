package units

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CPUDirection selects which way a CPU value is converted.
type CPUDirection int

const (
	// CoreToPercent turns a core count into percentage points (1.5 -> 150).
	CoreToPercent CPUDirection = iota + 1
	// PercentToCore turns percentage points into a core count (150 -> 1.5).
	PercentToCore
)

// DefaultCPUPrecision is the rounding applied when callers have no preference.
const DefaultCPUPrecision int32 = 2

var hundred = decimal.NewFromInt(100)

func (d CPUDirection) String() string {
	switch d {
	case CoreToPercent:
		return "core-to-percent"
	case PercentToCore:
		return "percent-to-core"
	default:
		return fmt.Sprintf("CPUDirection(%d)", int(d))
	}
}

// ParseCPUDirection accepts "core-to-percent" / "percent-to-core" and the short forms "percent" / "core"
// naming the target representation.
func ParseCPUDirection(raw string) (CPUDirection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "core-to-percent", "percent":
		return CoreToPercent, nil
	case "percent-to-core", "core", "cores":
		return PercentToCore, nil
	default:
		return 0, fmt.Errorf("units: unknown cpu direction %q", raw)
	}
}

// ConvertCPU converts value in the given direction and rounds half away from zero to precision decimals.
func ConvertCPU(value decimal.Decimal, dir CPUDirection, precision int32) decimal.Decimal {
	var result decimal.Decimal
	switch dir {
	case CoreToPercent:
		result = value.Mul(hundred).Truncate(scale)
	case PercentToCore:
		result, _ = value.QuoRem(hundred, scale)
	default:
		result = value
	}
	return result.Round(precision)
}
