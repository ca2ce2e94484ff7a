package deployment

import (
	"encoding/json"
	"math"
	"reflect"
)

// maxExactInt is the largest magnitude a float64 holds without losing
// integer precision.
const maxExactInt = 1 << 53

// normalizeValue brings a settings or metadata value into the one form both
// codecs reproduce: integral numbers become int, other numbers float64,
// string-keyed maps map[string]any and slices []any. Anything else is kept.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, bool, string, []byte:
		return v
	case int:
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return normalizeInt(n)
		}
		if f, err := x.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return x.String()
	case map[string]any:
		return normalizeParams(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return normalizeInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return float64(u)
		}
		return normalizeInt(int64(u))
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalizeValue(iter.Value().Interface())
		}
		return out
	}
	return v
}

func normalizeInt(n int64) any {
	if n > math.MaxInt || n < math.MinInt {
		return float64(n)
	}
	return int(n)
}

func normalizeFloat(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return f
	}
	return int(f)
}

// normalizeParams returns a normalized deep copy of m; nil stays nil.
func normalizeParams(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}
