package config

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

// decimalDecodeHook lets viper/mapstructure populate decimal.Decimal
// fields from the plain strings or numbers that YAML/env values arrive
// as, so TradingConfig never needs float64 intermediates.
func decimalDecodeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}

	switch from.Kind() {
	case reflect.String:
		s := data.(string)
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case reflect.Float64:
		return decimal.NewFromFloat(data.(float64)), nil
	case reflect.Int, reflect.Int64:
		return decimal.NewFromInt(reflect.ValueOf(data).Int()), nil
	default:
		return nil, fmt.Errorf("cannot decode %v into decimal.Decimal", from)
	}
}

var _ mapstructure.DecodeHookFuncType = decimalDecodeHook
