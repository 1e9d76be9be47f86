package command

import (
	"fmt"
	"strconv"

	"github.com/bytedance/gg/gconv"
)

type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a template variable: text, number or boolean. The zero value is
// empty text, which is what an absent binding resolves to.
type Value struct {
	kind Kind
	text string
	num  float64
	b    bool
}

func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

func Int(n int64) Value {
	return Value{kind: KindNumber, num: float64(n)}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func (v Value) Kind() Kind {
	return v.kind
}

// String renders the value as it is substituted into a command: booleans as
// "true"/"false", numbers in shortest decimal form without exponent.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.text
	}
}

// FromAny converts a decoded JSON/YAML scalar into a Value. nil maps to empty text.
func FromAny(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Text(""), nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int(gconv.To[int64](x)), nil
	default:
		return Value{}, fmt.Errorf("unsupported variable value type %T", raw)
	}
}

// FromMap converts every entry with FromAny.
func FromMap(raw map[string]interface{}) (map[string]Value, error) {
	out := make(map[string]Value, len(raw))
	for name, one := range raw {
		v, err := FromAny(one)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
