package sqlmap

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"math"
	"testing"
	"time"
)

type status string

type level uint8

type stamp time.Time

// upperValuer is a custom driver.Valuer.
type upperValuer struct{ s string }

func (u upperValuer) Value() (driver.Value, error) { return "UP:" + u.s, nil }

// TestParamOf_Dispatch checks every supported kind and the driver value it yields.
func TestParamOf_Dispatch(t *testing.T) {
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 9
	var nilPtr *int
	var nilValuer *upperValuer

	tests := []struct {
		name string
		in   any
		kind Kind
		want any
	}{
		{"nil", nil, KindNull, nil},
		{"int", 42, KindInt, int64(42)},
		{"int8", int8(-3), KindInt, int64(-3)},
		{"int16", int16(300), KindInt, int64(300)},
		{"int32", int32(7), KindInt, int64(7)},
		{"int64", int64(1 << 40), KindInt, int64(1 << 40)},
		{"uint", uint(5), KindInt, int64(5)},
		{"uint64 max int", uint64(math.MaxInt64), KindInt, int64(math.MaxInt64)},
		{"named uint8", level(3), KindInt, int64(3)},
		{"float32", float32(0.25), KindFloat, float64(0.25)},
		{"float64", 3.5, KindFloat, 3.5},
		{"string", "x", KindText, "x"},
		{"named string", status("active"), KindText, "active"},
		{"bool", true, KindBool, true},
		{"time", ts, KindTime, ts},
		{"named time", stamp(ts), KindTime, ts},
		{"bytes", []byte("ab"), KindBytes, []byte("ab")},
		{"raw bytes", sql.RawBytes("cd"), KindBytes, []byte("cd")},
		{"pointer", &n, KindInt, int64(9)},
		{"nil pointer", nilPtr, KindNull, nil},
		{"null string valid", sql.NullString{String: "s", Valid: true}, KindValuer, "s"},
		{"null string invalid", sql.NullString{}, KindValuer, nil},
		{"custom valuer", upperValuer{s: "a"}, KindValuer, "UP:a"},
		{"pointer valuer", &upperValuer{s: "b"}, KindValuer, "UP:b"},
		{"nil pointer valuer", nilValuer, KindNull, nil},
		{"param passthrough", Text("p"), KindText, "p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParamOf(tt.in)
			assertNoError(t, err)
			if p.Kind() != tt.kind {
				t.Fatalf("kind=%s, want %s", p.Kind(), tt.kind)
			}
			v, err := p.Value()
			assertNoError(t, err)
			if !equalArg(v, tt.want) {
				t.Fatalf("value=%#v, want %#v", v, tt.want)
			}
		})
	}
}

// TestParamOf_Unsupported rejects types with no statement binding.
func TestParamOf_Unsupported(t *testing.T) {
	for _, in := range []any{
		struct{}{},
		[]int{1},
		map[string]int{},
		make(chan int),
		complex(1, 2),
		uint64(math.MaxUint64),
		func() {},
	} {
		if _, err := ParamOf(in); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("%T: want ErrUnsupportedType, got %v", in, err)
		}
	}
}

// TestKind_String covers names and the fallback.
func TestKind_String(t *testing.T) {
	if KindBytes.String() != "bytes" || KindValuer.String() != "valuer" || Kind(99).String() != "unknown" {
		t.Fatal("unexpected kind names")
	}
}

// TestStatement_Args returns params as database/sql arguments.
func TestStatement_Args(t *testing.T) {
	st := Statement{Params: []Param{Int(1), Text("a"), Null{}}}
	args := st.Args()
	if len(args) != 3 {
		t.Fatalf("len=%d", len(args))
	}
	if _, ok := args[0].(driver.Valuer); !ok {
		t.Fatalf("arg is not a driver.Valuer: %T", args[0])
	}
}
