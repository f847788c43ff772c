package service

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// MinorToMajor converts an integer amount in minor units to major units,
// e.g. 1250 with exponent 2 is 12.50.
func MinorToMajor(amount int64, exponent int) decimal.Decimal {
	return decimal.New(amount, -int32(exponent))
}

// GatewayAmount renders a minor-unit amount as the JSON number the gateway
// expects for unit_price.
func GatewayAmount(amount int64, exponent int) json.Number {
	return json.Number(MinorToMajor(amount, exponent).StringFixed(int32(exponent)))
}

// FormatAmount renders a minor-unit amount for humans, e.g. "ARS 12.50".
func FormatAmount(amount int64, exponent int, currency string) string {
	s := MinorToMajor(amount, exponent).StringFixed(int32(exponent))
	if currency == "" {
		return s
	}
	return currency + " " + s
}
