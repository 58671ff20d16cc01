package botfeature

import "reflect"

// MergeAndPrune reconciles a stored feature config with the current defaults
// of its provider. The result always has exactly the default key set: stored
// values win when their type still matches, keys that no longer exist in the
// defaults are dropped, and newly added defaults appear with their default
// value. Objects merge recursively; arrays are taken or replaced whole.
//
// The function never mutates its inputs and is idempotent:
// MergeAndPrune(def, MergeAndPrune(def, stored)) == MergeAndPrune(def, stored).
func MergeAndPrune(def, stored map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(def))
	for key, defValue := range def {
		storedValue, present := stored[key]
		if !present || storedValue == nil {
			out[key] = cloneValue(defValue)
			continue
		}
		if defObject, ok := defValue.(map[string]interface{}); ok {
			if storedObject, ok := storedValue.(map[string]interface{}); ok {
				out[key] = MergeAndPrune(defObject, storedObject)
			} else {
				out[key] = cloneValue(defValue)
			}
			continue
		}
		if compatibleKinds(defValue, storedValue) {
			out[key] = cloneValue(storedValue)
		} else {
			out[key] = cloneValue(defValue)
		}
	}
	return out
}

// compatibleKinds reports whether a stored value may replace a default one.
// All numeric kinds are interchangeable because JSON round-trips numbers as
// float64 while defaults are written as Go ints.
func compatibleKinds(defValue, storedValue interface{}) bool {
	if defValue == nil || storedValue == nil {
		return defValue == nil && storedValue == nil
	}
	defKind := normalizeKind(reflect.TypeOf(defValue).Kind())
	storedKind := normalizeKind(reflect.TypeOf(storedValue).Kind())
	return defKind == storedKind
}

func normalizeKind(kind reflect.Kind) reflect.Kind {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return reflect.Float64
	case reflect.Array:
		return reflect.Slice
	default:
		return kind
	}
}

func cloneValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = cloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return v
	}
}
