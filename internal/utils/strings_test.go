package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringArrayEquivalent(t *testing.T) {

	t.Run("happy path: same elements in any order", func(t *testing.T) {
		equivalent, left, right := StringArrayEquivalent([]string{"a", "b"}, []string{"b", "a"})
		assert.True(t, equivalent)
		assert.Empty(t, left)
		assert.Empty(t, right)
	})

	t.Run("happy path: duplicates do not matter", func(t *testing.T) {
		equivalent, _, _ := StringArrayEquivalent([]string{"a", "a", "b"}, []string{"b", "a"})
		assert.True(t, equivalent)
	})

	t.Run("happy path: diff is reported", func(t *testing.T) {
		equivalent, left, right := StringArrayEquivalent([]string{"a", "b"}, []string{"b", "c"})
		assert.False(t, equivalent)
		assert.Equal(t, []string{"c"}, left)
		assert.Equal(t, []string{"a"}, right)
	})

	t.Run("happy path: both empty", func(t *testing.T) {
		equivalent, left, right := StringArrayEquivalent([]string{}, nil)
		assert.True(t, equivalent)
		assert.Empty(t, left)
		assert.Empty(t, right)
	})
}

func TestStringInSlice(t *testing.T) {
	assert.True(t, StringInSlice("b", []string{"a", "b"}))
	assert.False(t, StringInSlice("c", []string{"a", "b"}))
	assert.False(t, StringInSlice("a", nil))
}

func TestDeepEqualUnordered(t *testing.T) {

	t.Run("happy path: slice order is ignored", func(t *testing.T) {
		a := map[string]interface{}{"rules": []interface{}{"x", "y"}}
		b := map[string]interface{}{"rules": []interface{}{"y", "x"}}
		assert.True(t, DeepEqualUnordered(a, b))
	})

	t.Run("happy path: nested maps compare by value", func(t *testing.T) {
		a := map[string]interface{}{"params": map[string]interface{}{"count": 2}}
		b := map[string]interface{}{"params": map[string]interface{}{"count": 2}}
		assert.True(t, DeepEqualUnordered(a, b))
	})

	t.Run("error path: different elements", func(t *testing.T) {
		a := []interface{}{"x", "y"}
		b := []interface{}{"x", "z"}
		assert.False(t, DeepEqualUnordered(a, b))
	})

	t.Run("error path: different lengths", func(t *testing.T) {
		assert.False(t, DeepEqualUnordered([]string{"x"}, []string{"x", "x"}))
	})
}
