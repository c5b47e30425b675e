package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromFloat(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		expected int64
	}{
		{"simple euro", 1234.56, EUR, 123456},
		{"rounds half up", 10.005, EUR, 1001},
		{"negative", -99.99, USD, -9999},
		{"zero", 0, EUR, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewFromFloat(tc.amount, tc.currency)
			assert.Equal(t, tc.expected, m.Amount())
			assert.Equal(t, tc.currency, m.Currency())
		})
	}
}

func TestNewFromDecimal(t *testing.T) {
	d := decimal.RequireFromString("1234.56")
	m := NewFromDecimal(d, EUR)
	assert.Equal(t, int64(123456), m.Amount())
	assert.True(t, d.Equal(m.ToDecimal()))
}

func TestNewFromDecimal_UnknownCurrencyFallsBackToEUR(t *testing.T) {
	m := NewFromDecimal(decimal.NewFromInt(10), "XXX-NOT-A-CODE")
	assert.Equal(t, EUR, m.Currency())
}

func TestMoney_Add(t *testing.T) {
	a := New(100, EUR)
	b := New(250, EUR)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(350), sum.Amount())

	_, err = a.Add(New(100, USD))
	assert.Error(t, err)
}

func TestMoney_NilSafety(t *testing.T) {
	var m *Money
	assert.Equal(t, int64(0), m.Amount())
	assert.True(t, m.IsZero())
	assert.False(t, m.IsPositive())
	assert.Equal(t, "0.00", m.String())
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := NewFromFloat(1234.56, EUR)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.Amount(), back.Amount())
	assert.Equal(t, m.Currency(), back.Currency())
}
