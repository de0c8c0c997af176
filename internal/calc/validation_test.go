package calc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateOracleAge(t *testing.T) {
	assert.NoError(t, ValidateOracleAge(time.Now().Add(-time.Second), time.Minute))
	assert.Error(t, ValidateOracleAge(time.Now().Add(-2*time.Minute), time.Minute))
	assert.Error(t, ValidateOracleAge(time.Time{}, time.Minute))
	assert.NoError(t, ValidateOracleAge(time.Now().Add(-time.Hour), 0))
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr bool
	}{
		{name: "positive", amount: decimal.NewFromInt(10)},
		{name: "max uint256", amount: MaxUint256},
		{name: "zero", amount: decimal.Zero, wantErr: true},
		{name: "negative", amount: decimal.NewFromInt(-1), wantErr: true},
		{name: "fraction", amount: decimal.RequireFromString("1.5"), wantErr: true},
		{name: "overflow", amount: MaxUint256.Add(decimal.NewFromInt(1)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount, "deposit")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
