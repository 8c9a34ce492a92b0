package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

type ValueKind string

const (
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindBool   ValueKind = "bool"
	KindTime   ValueKind = "time"
)

// Value is a single workflow context variable. Exactly one of the typed fields is meaningful,
// selected by Kind.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t.UTC()} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return fmt.Sprint(v.i)
	case KindFloat:
		return fmt.Sprint(v.f)
	case KindBool:
		return fmt.Sprint(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	}

	return ""
}

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsTime() (time.Time, bool) { return v.t, v.kind == KindTime }

// Any returns the value as the matching Go type.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	}

	return nil
}

type jsonValue struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(v.Any())
	if err != nil {
		return nil, err
	}

	return json.Marshal(jsonValue{Kind: v.kind, Value: raw})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(b, &jv); err != nil {
		return err
	}

	var err error
	switch jv.Kind {
	case KindString:
		var s string
		err = json.Unmarshal(jv.Value, &s)
		*v = StringValue(s)
	case KindInt:
		var i int64
		err = json.Unmarshal(jv.Value, &i)
		*v = IntValue(i)
	case KindFloat:
		var f float64
		err = json.Unmarshal(jv.Value, &f)
		*v = FloatValue(f)
	case KindBool:
		var bv bool
		err = json.Unmarshal(jv.Value, &bv)
		*v = BoolValue(bv)
	case KindTime:
		var t time.Time
		err = json.Unmarshal(jv.Value, &t)
		*v = TimeValue(t)
	default:
		return fmt.Errorf("unknown value kind %q", jv.Kind)
	}

	return err
}

// Variables is the context of a task instance, keyed by variable name.
type Variables map[string]Value

func (vs Variables) Clone() Variables {
	if vs == nil {
		return nil
	}

	return maps.Clone(vs)
}

// VariablesFrom converts plain Go values. Supported are strings, bools, signed integers,
// floats and time.Time.
func VariablesFrom(m map[string]any) (Variables, error) {
	if m == nil {
		return nil, nil
	}

	vs := make(Variables, len(m))
	for k, raw := range m {
		switch x := raw.(type) {
		case string:
			vs[k] = StringValue(x)
		case bool:
			vs[k] = BoolValue(x)
		case int:
			vs[k] = IntValue(int64(x))
		case int32:
			vs[k] = IntValue(int64(x))
		case int64:
			vs[k] = IntValue(x)
		case float32:
			vs[k] = FloatValue(float64(x))
		case float64:
			vs[k] = FloatValue(x)
		case time.Time:
			vs[k] = TimeValue(x)
		case Value:
			vs[k] = x
		default:
			return nil, fmt.Errorf("variable %q: unsupported type %T", k, raw)
		}
	}

	return vs, nil
}
