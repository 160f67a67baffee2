package statemap_test

import (
	"testing"

	"github.com/benbjohnson/immutable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storexkit/storex-go/statemap"
)

func Test_Set_SharesUntouchedBranches(t *testing.T) {
	left := statemap.ToCanonical(map[string]any{"a": 1})
	root := statemap.Set(statemap.Empty(), "left", left)
	root = statemap.Set(root, "right", 10)

	next := statemap.Set(root, "right", 11)

	prevLeft, ok := statemap.Get(root, "left")
	require.True(t, ok)
	nextLeft, ok := statemap.Get(next, "left")
	require.True(t, ok)
	assert.True(t, statemap.Identical(prevLeft, nextLeft), "untouched branch should keep its reference")

	prevRight, _ := statemap.Get(root, "right")
	assert.Equal(t, 10, prevRight, "prior root must be unaffected by the write")
}

func Test_Delete_LeavesInputIntact(t *testing.T) {
	root := statemap.Set(statemap.Empty(), "gone", 1)
	root = statemap.Set(root, "kept", 2)

	next := statemap.Delete(root, "gone")

	_, stillThere := statemap.Get(root, "gone")
	assert.True(t, stillThere)
	_, there := statemap.Get(next, "gone")
	assert.False(t, there)
}

func Test_ToCanonical_ConvertsNestedContainers(t *testing.T) {
	v := statemap.ToCanonical(map[string]any{
		"scalar": 42,
		"nested": map[string]any{"flag": true},
		"items":  []any{"a", map[string]any{"b": 2}},
	})

	m, ok := v.(*immutable.Map[string, any])
	require.True(t, ok, "top level should become an immutable map")

	nested, ok := m.Get("nested")
	require.True(t, ok)
	_, ok = nested.(*immutable.Map[string, any])
	assert.True(t, ok, "nested maps should convert too")

	items, ok := m.Get("items")
	require.True(t, ok)
	list, ok := items.(*immutable.List[any])
	require.True(t, ok, "slices should become immutable lists")
	_, ok = list.Get(1).(*immutable.Map[string, any])
	assert.True(t, ok, "maps inside lists should convert")
}

func Test_ToNative_InvertsToCanonical(t *testing.T) {
	original := map[string]any{
		"scalar": "x",
		"nested": map[string]any{"n": 1},
		"items":  []any{1, 2},
	}

	roundTripped := statemap.ToNative(statemap.ToCanonical(original))

	assert.Equal(t, original, roundTripped)
}

func Test_ToCanonical_PassesScalarsAndUserTypesThrough(t *testing.T) {
	type point struct{ X, Y int }

	assert.Equal(t, 3, statemap.ToCanonical(3))
	assert.Equal(t, point{1, 2}, statemap.ToCanonical(point{1, 2}))
	assert.Nil(t, statemap.ToCanonical(nil))
}

func Test_DeepEqual_Behavior(t *testing.T) {
	tests := []struct {
		name string
		a    any
		b    any
		want bool
	}{
		{
			name: "equal canonical maps built separately",
			a:    statemap.ToCanonical(map[string]any{"a": 1, "b": []any{1, 2}}),
			b:    statemap.ToCanonical(map[string]any{"a": 1, "b": []any{1, 2}}),
			want: true,
		},
		{
			name: "canonical maps differing in one leaf",
			a:    statemap.ToCanonical(map[string]any{"a": 1}),
			b:    statemap.ToCanonical(map[string]any{"a": 2}),
			want: false,
		},
		{
			name: "canonical map never equals native map",
			a:    statemap.ToCanonical(map[string]any{"a": 1}),
			b:    map[string]any{"a": 1},
			want: false,
		},
		{
			name: "native slices compare element-wise",
			a:    []any{1, "two", []any{3}},
			b:    []any{1, "two", []any{3}},
			want: true,
		},
		{
			name: "length mismatch",
			a:    []any{1},
			b:    []any{1, 2},
			want: false,
		},
		{
			name: "scalars",
			a:    "x",
			b:    "x",
			want: true,
		},
		{
			name: "nils",
			a:    nil,
			b:    nil,
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statemap.DeepEqual(tc.a, tc.b))
		})
	}
}

func Test_Identical_Behavior(t *testing.T) {
	shared := statemap.ToCanonical(map[string]any{"a": 1})
	rebuilt := statemap.ToCanonical(map[string]any{"a": 1})
	sameSlice := []any{1, 2}

	tests := []struct {
		name string
		a    any
		b    any
		want bool
	}{
		{name: "same pointer", a: shared, b: shared, want: true},
		{name: "equal content, different pointer", a: shared, b: rebuilt, want: false},
		{name: "equal scalars", a: 7, b: 7, want: true},
		{name: "different scalars", a: 7, b: 8, want: false},
		{name: "different dynamic types", a: 7, b: int64(7), want: false},
		{name: "same slice reference", a: sameSlice, b: sameSlice, want: true},
		{name: "distinct slices with equal content", a: []any{1, 2}, b: []any{1, 2}, want: false},
		{name: "nil against value", a: nil, b: 0, want: false},
		{name: "both nil", a: nil, b: nil, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statemap.Identical(tc.a, tc.b))
		})
	}
}
