package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCapacityPolicy(t *testing.T) {
	tests := []struct {
		name         string
		cfg          SessionConfig
		wantCapacity int
		wantMinSize  int
	}{
		{name: "explicit min size", cfg: SessionConfig{Capacity: 4, MinSize: 2}, wantCapacity: 4, wantMinSize: 2},
		{name: "zero min size means full capacity", cfg: SessionConfig{Capacity: 4}, wantCapacity: 4, wantMinSize: 4},
		{name: "min size clamped to capacity", cfg: SessionConfig{Capacity: 3, MinSize: 9}, wantCapacity: 3, wantMinSize: 3},
		{name: "capacity normalized to one", cfg: SessionConfig{}, wantCapacity: 1, wantMinSize: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capacity, minSize := DefaultCapacityPolicy(tt.cfg)
			assert.Equal(t, tt.wantCapacity, capacity)
			assert.Equal(t, tt.wantMinSize, minSize)
		})
	}
}

func TestNumericAttr(t *testing.T) {
	for _, v := range []any{7, int32(7), int64(7), float32(7), 7.0, "7"} {
		f, ok := NumericAttr(v)
		assert.True(t, ok)
		assert.Equal(t, 7.0, f)
	}

	_, ok := NumericAttr("not a number")
	assert.False(t, ok)
	_, ok = NumericAttr(nil)
	assert.False(t, ok)
}

func TestStringAttr(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{in: "expert", want: "expert", ok: true},
		{in: 3, want: "3", ok: true},
		{in: int64(3), want: "3", ok: true},
		{in: 1.5, want: "1.5", ok: true},
		{in: true, want: "true", ok: true},
		{in: []string{"x"}, ok: false},
	}
	for _, tt := range tests {
		got, ok := StringAttr(tt.in)
		assert.Equal(t, tt.ok, ok)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
