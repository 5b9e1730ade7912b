package sqlmap

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Kind classifies a bound parameter.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBool
	KindTime
	KindBytes
	KindValuer
)

var kindNames = [...]string{
	KindNull:   "null",
	KindInt:    "int",
	KindFloat:  "float",
	KindText:   "text",
	KindBool:   "bool",
	KindTime:   "time",
	KindBytes:  "bytes",
	KindValuer: "valuer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Param is a value ready to be attached to a statement marker. The set of
// implementations is closed; each one hands database/sql the driver type
// matching its kind.
type Param interface {
	driver.Valuer
	Kind() Kind
}

type (
	Int    int64
	Float  float64
	Text   string
	Bool   bool
	Time   time.Time
	Bytes  []byte
	Null   struct{}
	Valuer struct{ V driver.Valuer }
)

func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (Text) Kind() Kind   { return KindText }
func (Bool) Kind() Kind   { return KindBool }
func (Time) Kind() Kind   { return KindTime }
func (Bytes) Kind() Kind  { return KindBytes }
func (Null) Kind() Kind   { return KindNull }
func (Valuer) Kind() Kind { return KindValuer }

func (p Int) Value() (driver.Value, error)    { return int64(p), nil }
func (p Float) Value() (driver.Value, error)  { return float64(p), nil }
func (p Text) Value() (driver.Value, error)   { return string(p), nil }
func (p Bool) Value() (driver.Value, error)   { return bool(p), nil }
func (p Time) Value() (driver.Value, error)   { return time.Time(p), nil }
func (p Bytes) Value() (driver.Value, error)  { return []byte(p), nil }
func (Null) Value() (driver.Value, error)     { return nil, nil }
func (p Valuer) Value() (driver.Value, error) { return p.V.Value() }

var (
	valuerIface = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))
)

// ParamOf converts v into a Param by its runtime type. Narrow and named
// numeric types widen to Int or Float; pointers are followed and a nil
// pointer binds NULL. Values already implementing driver.Valuer are passed
// through. Anything else fails with ErrUnsupportedType.
func ParamOf(v any) (Param, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Param:
		return x, nil
	case int:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case string:
		return Text(x), nil
	case float64:
		return Float(x), nil
	case bool:
		return Bool(x), nil
	case time.Time:
		return Time(x), nil
	case []byte:
		return Bytes(x), nil
	case driver.Valuer:
		return paramOfValuer(x), nil
	}
	return paramOfValue(reflect.ValueOf(v))
}

// paramOfValuer guards against typed nil pointers implementing driver.Valuer.
func paramOfValuer(v driver.Valuer) Param {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Null{}
	}
	return Valuer{V: v}
}

// paramOfValue is the reflective slow path of ParamOf.
func paramOfValue(rv reflect.Value) (Param, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Null{}, nil
		}
		if rv.Type().Implements(valuerIface) {
			return paramOfValuer(rv.Interface().(driver.Valuer)), nil
		}
		rv = rv.Elem()
	}
	rt := rv.Type()
	if rt.Implements(valuerIface) {
		return Valuer{V: rv.Interface().(driver.Valuer)}, nil
	}
	if rt.ConvertibleTo(timeType) && rt.Kind() == reflect.Struct {
		return Time(rv.Convert(timeType).Interface().(time.Time)), nil
	}

	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedType, u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return Bytes(rv.Convert(bytesType).Interface().([]byte)), nil
		}
	}
	return nil, ErrUnsupportedType
}
