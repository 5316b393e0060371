package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain integer", input: "120", want: "120"},
		{name: "plain decimal", input: "99.5", want: "99.5"},
		{name: "rupee glyph", input: "₹250.00", want: "250"},
		{name: "rupee glyph with space", input: "₹ 40", want: "40"},
		{name: "mis-decoded rupee glyph", input: "â‚¹75.25", want: "75.25"},
		{name: "thousands separator", input: "₹1,299.00", want: "1299"},
		{name: "indian grouping", input: "1,23,456.50", want: "123456.5"},
		{name: "rs prefix", input: "Rs. 450", want: "450"},
		{name: "inr code", input: "INR 1,000", want: "1000"},
		{name: "dollar sign", input: "$3.10", want: "3.1"},
		{name: "slash dash suffix", input: "₹120/-", want: "120"},
		{name: "rounds to minor units", input: "10.005", want: "10.01"},
		{name: "zero is allowed", input: "0", want: "0"},
		{name: "empty", input: "  ", wantErr: ErrEmptyPrice},
		{name: "letters", input: "free", wantErr: ErrInvalidPrice},
		{name: "trailing garbage", input: "12abc", wantErr: ErrInvalidPrice},
		{name: "NaN token", input: "NaN", wantErr: ErrInvalidPrice},
		{name: "two dots", input: "1.2.3", wantErr: ErrInvalidPrice},
		{name: "comma decimal after dot grouping", input: "1.234,56", wantErr: ErrInvalidPrice},
		{name: "comma as decimal point", input: "12,5", wantErr: ErrInvalidPrice},
		{name: "comma after decimal point", input: "₹12.50,00", wantErr: ErrInvalidPrice},
		{name: "western grouping", input: "1,234,567", want: "1234567"},
		{name: "negative", input: "-5", wantErr: ErrNegativePrice},
		{name: "negative after glyph", input: "₹-5", wantErr: ErrNegativePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "₹65.00", Format("₹", decimal.NewFromInt(65)))
	assert.Equal(t, "₹0.10", Format("₹", decimal.RequireFromString("0.1")))
	assert.Equal(t, "unknown", FormatNull("₹", decimal.NullDecimal{}))
	assert.Equal(t, "₹12.50", FormatNull("₹", decimal.NewNullDecimal(decimal.RequireFromString("12.5"))))
}

func TestSum_NoDrift(t *testing.T) {
	tenth := decimal.RequireFromString("0.1")
	amounts := make([]decimal.Decimal, 0, 1000)
	for i := 0; i < 1000; i++ {
		amounts = append(amounts, tenth)
	}
	assert.True(t, decimal.NewFromInt(100).Equal(Sum(amounts...)))
	assert.True(t, FromInt(30).Equal(decimal.RequireFromString("30.00")))
}
