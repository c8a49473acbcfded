package pointstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableInsertGetDelete(t *testing.T) {
	tbl := New[string](8)
	tbl.Insert(1, "one")
	tbl.Insert(9, "also-one-bucket") // collides with key 1 under mod 8

	v, ok := tbl.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	v, ok = tbl.Get(9)
	assert.True(t, ok)
	assert.Equal(t, "also-one-bucket", v)

	assert.True(t, tbl.Delete(1))
	_, ok = tbl.Get(1)
	assert.False(t, ok)

	// the collided entry must still be reachable after deleting its neighbor
	v, ok = tbl.Get(9)
	assert.True(t, ok)
	assert.Equal(t, "also-one-bucket", v)
}

func TestTableOverwriteOnDuplicateKey(t *testing.T) {
	tbl := New[int](4)
	tbl.Insert(5, 100)
	tbl.Insert(5, 200)
	v, ok := tbl.Get(5)
	assert.True(t, ok)
	assert.Equal(t, 200, v)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableDeleteMissingKey(t *testing.T) {
	tbl := New[int](4)
	assert.False(t, tbl.Delete(42))
}

func TestTableEachVisitsAllEntries(t *testing.T) {
	tbl := New[int](16)
	want := map[int]int{1: 10, 2: 20, 3: 30}
	for k, v := range want {
		tbl.Insert(k, v)
	}
	got := map[int]int{}
	tbl.Each(func(k, v int) { got[k] = v })
	assert.Equal(t, want, got)
}
