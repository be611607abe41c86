package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNumberFormat_Format(t *testing.T) {
	tests := []struct {
		name  string
		value string
		opts  []FormatOption
		want  string
	}{
		{name: "defaults", value: "1234.5", want: "1,234.50"},
		{name: "small", value: "0.5", want: "0.50"},
		{name: "millions", value: "1234567.891", want: "1,234,567.89"},
		{name: "round half up", value: "2.345", want: "2.35"},
		{name: "negative", value: "-1234.5", want: "-1,234.50"},
		{name: "negative rounds to zero", value: "-0.001", want: "0.00"},
		{name: "no decimals", value: "1234.5", opts: []FormatOption{Places(0)}, want: "1,235"},
		{name: "european", value: "1234567.5", opts: []FormatOption{Point(","), Separator(".")}, want: "1.234.567,50"},
		{name: "no separator", value: "1234567.5", opts: []FormatOption{Separator("")}, want: "1234567.50"},
		{name: "four places", value: "1.6", opts: []FormatOption{Places(4)}, want: "1.6000"},
	}

	f := DefaultNumberFormat()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Format(decimal.RequireFromString(tt.value), tt.opts...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumberFormat_OverridesDoNotLeak(t *testing.T) {
	f := DefaultNumberFormat()
	_ = f.Format(decimal.NewFromInt(1), Places(4), Point(","))

	assert.Equal(t, DefaultNumberFormat(), f)
}
