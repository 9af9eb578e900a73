// Package core provides the fundamental building blocks of the talos ODM.
// This file defines the type conversion service, which translates Go values
// into the native value representation used by the document database.
package core

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Converter translates a single Go value into its wire-native equivalent.
//
// Implementations must be idempotent: converting a value that is already in
// its wire-native form must return it unchanged. The mappers rely on this to
// keep repeated translation of the same document structurally identical.
type Converter interface {
	ConvertValue(value any) any
}

// DefaultConverter is the standard conversion service.
//
// It converts:
//   - decimal.Decimal (and *decimal.Decimal) to primitive.Decimal128
//   - uuid.UUID to its canonical string form
//   - time.Time to primitive.DateTime
//   - named string types (enums) to plain strings
//
// Native wire values (primitive.Decimal128, primitive.ObjectID, strings,
// numbers, documents) pass through unchanged.
type DefaultConverter struct{}

var _ Converter = DefaultConverter{}

// ConvertValue implements Converter.
func (c DefaultConverter) ConvertValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return decimalToWire(v)
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		return decimalToWire(*v)
	case uuid.UUID:
		return v.String()
	case time.Time:
		return primitive.NewDateTimeFromTime(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return primitive.NewDateTimeFromTime(*v)
	case string, bool, int, int32, int64, float32, float64,
		primitive.Decimal128, primitive.ObjectID, primitive.DateTime,
		primitive.Regex, primitive.Binary, []byte:
		return v
	}

	// Named scalar types (enums declared as `type Status string` and
	// friends) convert to their underlying kind.
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	}
	return value
}

// decimalToWire converts a decimal into the database's high-precision numeric
// type. The string form of a decimal is always a valid Decimal128 literal, so
// a parse failure falls back to the string representation instead of losing
// the value.
func decimalToWire(d decimal.Decimal) any {
	d128, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return d.String()
	}
	return d128
}
