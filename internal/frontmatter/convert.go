package frontmatter

import (
	"fmt"
	"sort"
	"time"
)

// FromAny converts loosely typed data, as produced by yaml.v3 or
// encoding/json, into a Value. Maps without a defined order get their keys
// sorted. List items are scalars, so a non-empty list or map nested in a
// list becomes a string holding its flow text.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case *Map:
		return MapValue(x)
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case float32:
		return Number(float64(x))
	case float64:
		return Number(x)
	case time.Time:
		return String(x.UTC().Format(time.RFC3339))
	case []string:
		return Strings(x)
	case []any:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			items = append(items, listItem(FromAny(item)))
		}
		return List(items...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, FromAny(x[k]))
		}
		return MapValue(m)
	case map[any]any:
		conv := make(map[string]any, len(x))
		for k, val := range x {
			conv[fmt.Sprint(k)] = val
		}
		return FromAny(conv)
	case fmt.Stringer:
		return String(x.String())
	default:
		return String(fmt.Sprint(x))
	}
}

func listItem(v Value) Value {
	switch v.Kind() {
	case KindList, KindMap:
		if text := flowText(v); text != "[]" && text != "{}" {
			return String(text)
		}
	}
	return v
}
