package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAsset = Asset{
	Address:  "0x29f45fc3ed1d0ffafb5e2af9cc6c3ab1555cd5a2",
	Decimals: 18,
	Name:     "Exp",
	Version:  "1",
}

func TestAtomicAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int32
		want     string
		wantErr  error
	}{
		{name: "half token at 18 decimals", amount: "0.5", decimals: 18, want: "500000000000000000"},
		{name: "millitoken at 18 decimals", amount: "0.001", decimals: 18, want: "1000000000000000"},
		{name: "whole token", amount: "5", decimals: 18, want: "5000000000000000000"},
		{name: "six decimals", amount: "1.25", decimals: 6, want: "1250000"},
		{name: "zero", amount: "0", decimals: 18, want: "0"},
		{name: "non numeric", amount: "a lot", decimals: 18, wantErr: ErrPriceConversion},
		{name: "negative", amount: "-1", decimals: 18, wantErr: ErrPriceConversion},
		{name: "sub atomic precision", amount: "0.0000001", decimals: 6, wantErr: ErrPriceConversion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AtomicAmount(tt.amount, tt.decimals)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildRequirements(t *testing.T) {
	reqs, err := BuildRequirements("0.5", testAsset, "base-sepolia", "http://example.com/resource/self", "weather data", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	require.NoError(t, err)

	assert.Equal(t, SchemeExact, reqs.Scheme)
	assert.Equal(t, "base-sepolia", reqs.Network)
	assert.Equal(t, "500000000000000000", reqs.MaxAmountRequired)
	assert.Equal(t, "http://example.com/resource/self", reqs.Resource)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", reqs.PayTo)
	assert.Equal(t, testAsset.Address, reqs.Asset)
	assert.Equal(t, DefaultMaxTimeoutSeconds, reqs.MaxTimeoutSeconds)
	assert.Equal(t, SigningDomain{Name: "Exp", Version: "1"}, reqs.Extra)
}

func TestBuildRequirementsConversionError(t *testing.T) {
	_, err := BuildRequirements("not-a-number", testAsset, "base-sepolia", "http://example.com", "", "0x0")
	require.ErrorIs(t, err, ErrPriceConversion)
}
