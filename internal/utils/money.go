package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// currencyExponents maps ISO 4217 codes to their decimal exponent. Zero-
// decimal currencies settle 1:1 with the smallest unit; anything missing
// defaults to 2.
var currencyExponents = map[string]int{
	"RWF": 0,
	"UGX": 0,
	"BIF": 0,
	"XAF": 0,
	"XOF": 0,
	"GNF": 0,
	"JPY": 0,
	"KRW": 0,
	"KES": 2,
	"GHS": 2,
	"NGN": 2,
	"ZMW": 2,
	"USD": 2,
	"EUR": 2,
}

// CurrencyExponent returns the decimal exponent for a currency code.
func CurrencyExponent(currency string) int {
	if exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// ToSmallestUnit converts a major-unit amount to the provider's smallest
// currency unit (e.g. 50.25 GHS -> 5025; 50000 RWF -> 50000).
func ToSmallestUnit(amount float64, currency string) int64 {
	factor := math.Pow10(CurrencyExponent(currency))
	return int64(math.Round(amount * factor))
}

// FromSmallestUnit converts a smallest-unit amount back to major units.
func FromSmallestUnit(amount int64, currency string) float64 {
	factor := math.Pow10(CurrencyExponent(currency))
	return float64(amount) / factor
}

// ParseProviderAmount parses the amount strings aggregators send
// (smallest unit, optionally with a decimal part that must be zero-padded
// away, e.g. "50000" or "50000.00").
func ParseProviderAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("amount kosong")
	}
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		frac := strings.TrimRight(raw[i+1:], "0")
		if frac != "" {
			return 0, fmt.Errorf("amount bukan smallest unit: %s", raw)
		}
		raw = raw[:i]
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount tidak valid: %s", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("amount negatif: %s", raw)
	}
	return n, nil
}

// FormatMoney keeps consistent decimal formatting for currency fields.
func FormatMoney(amount int64, currency string) string {
	exp := CurrencyExponent(currency)
	if exp == 0 {
		return strconv.FormatInt(amount, 10)
	}
	return strconv.FormatFloat(FromSmallestUnit(amount, currency), 'f', exp, 64)
}
