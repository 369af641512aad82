package service

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		amount string
		cents  int64
	}{
		{"45.00", 4500},
		{"0", 0},
		{"19.99", 1999},
		// Full-precision engine output rounds only here, at the charge
		// boundary.
		{"13.3933", 1339},
		{"13.395", 1340},
	}

	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.amount)
		assert.NoError(t, err)
		assert.Equal(t, tc.cents, toMinorUnits(d), "amount %s", tc.amount)
	}
}

func TestNewOrderNumber(t *testing.T) {
	n1 := newOrderNumber()
	n2 := newOrderNumber()

	assert.True(t, strings.HasPrefix(n1, "ORD-"))
	assert.Len(t, n1, len("ORD-")+12)
	assert.NotEqual(t, n1, n2)
	assert.Equal(t, strings.ToUpper(n1), n1)
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)

	s := nullString("visa")
	assert.True(t, s.Valid)
	assert.Equal(t, "visa", s.String)
}
