package storekey

import (
	"testing"
	"time"
)

func TestComparable_String(t *testing.T) {
	now := time.Now()
	cases := []struct {
		key      Comparable
		expected string
	}{
		{IntKey(10), "10"},
		{VarcharKey("test"), "test"},
		{FloatKey(3.14), "3.140000"},
		{BoolKey(true), "true"},
		{BoolKey(false), "false"},
		{DateKey(now), now.Format("2006-01-02 15:04:05")},
	}

	for _, tc := range cases {
		if s := tc.key.(interface{ String() string }).String(); s != tc.expected {
			t.Errorf("Expected %q, got %q", tc.expected, s)
		}
	}
}

func TestIntKey_Compare(t *testing.T) {
	cases := []struct {
		a, b Comparable
		want int
	}{
		{IntKey(5), IntKey(10), -1},
		{IntKey(10), IntKey(5), 1},
		{IntKey(10), IntKey(10), 0},
		{IntKey(-5), IntKey(5), -1},
	}
	for _, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestVarcharKey_Compare(t *testing.T) {
	cases := []struct {
		a, b Comparable
		want int
	}{
		{VarcharKey("apple"), VarcharKey("banana"), -1},
		{VarcharKey("cherry"), VarcharKey("banana"), 1},
		{VarcharKey("test"), VarcharKey("test"), 0},
		{VarcharKey("Apple"), VarcharKey("apple"), -1}, // 'A' < 'a' in ASCII
		{VarcharKey(""), VarcharKey("a"), -1},
	}
	for _, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestFloatKey_Compare(t *testing.T) {
	cases := []struct {
		a, b Comparable
		want int
	}{
		{FloatKey(1.5), FloatKey(2.5), -1},
		{FloatKey(2.5), FloatKey(1.5), 1},
		{FloatKey(1.5), FloatKey(1.5), 0},
	}
	for _, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestBoolKey_Compare(t *testing.T) {
	cases := []struct {
		a, b Comparable
		want int
	}{
		{BoolKey(false), BoolKey(true), -1},
		{BoolKey(true), BoolKey(false), 1},
		{BoolKey(true), BoolKey(true), 0},
		{BoolKey(false), BoolKey(false), 0},
	}
	for _, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDateKey_Compare(t *testing.T) {
	earlier := DateKey(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	later := DateKey(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	sameA := DateKey(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	sameB := DateKey(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	if got := earlier.Compare(later); got != -1 {
		t.Errorf("earlier.Compare(later) = %d, want -1", got)
	}
	if got := later.Compare(earlier); got != 1 {
		t.Errorf("later.Compare(earlier) = %d, want 1", got)
	}
	if got := sameA.Compare(sameB); got != 0 {
		t.Errorf("sameA.Compare(sameB) = %d, want 0", got)
	}
}
