package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NumberFormat controls how money values are rendered for display.
type NumberFormat struct {
	DecimalPlaces      int32
	DecimalPoint       string
	ThousandsSeparator string
}

// DefaultNumberFormat renders "1,234.50".
func DefaultNumberFormat() NumberFormat {
	return NumberFormat{
		DecimalPlaces:      2,
		DecimalPoint:       ".",
		ThousandsSeparator: ",",
	}
}

// FormatOption overrides a single NumberFormat setting for one call.
type FormatOption func(*NumberFormat)

// Places overrides the number of decimal places.
func Places(n int32) FormatOption {
	return func(f *NumberFormat) { f.DecimalPlaces = n }
}

// Point overrides the decimal point.
func Point(s string) FormatOption {
	return func(f *NumberFormat) { f.DecimalPoint = s }
}

// Separator overrides the thousands separator.
func Separator(s string) FormatOption {
	return func(f *NumberFormat) { f.ThousandsSeparator = s }
}

// With returns a copy of f with opts applied.
func (f NumberFormat) With(opts ...FormatOption) NumberFormat {
	for _, opt := range opts {
		opt(&f)
	}
	if f.DecimalPlaces < 0 {
		f.DecimalPlaces = 0
	}
	return f
}

// Format rounds v half away from zero to the configured places and groups
// the integer part by thousands.
func (f NumberFormat) Format(v decimal.Decimal, opts ...FormatOption) string {
	f = f.With(opts...)

	s := v.StringFixed(f.DecimalPlaces)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i := range len(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(f.ThousandsSeparator)
		}
		b.WriteByte(intPart[i])
	}
	if f.DecimalPlaces > 0 {
		b.WriteString(f.DecimalPoint)
		b.WriteString(frac)
	}
	return b.String()
}
