package pointstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListPushBackOrder(t *testing.T) {
	l := NewList[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.PushBack(3)

	var got []int
	l.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 3, l.Len())
}

func TestListRemoveHeadKeepsTailCorrect(t *testing.T) {
	l := NewList[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.PushBack(3)

	assert.True(t, l.Remove(func(v int) bool { return v == 1 }))

	var got []int
	l.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{2, 3}, got)

	// pushing after removing head must still append correctly, which only
	// works if tail is still valid
	l.PushBack(4)
	got = nil
	l.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestListRemoveTailFixesTailPointer(t *testing.T) {
	l := NewList[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.PushBack(3)

	assert.True(t, l.Remove(func(v int) bool { return v == 3 }))

	// removing the tail without updating l.tail would leave a future
	// PushBack appending to a detached node.
	l.PushBack(4)

	var got []int
	l.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{1, 2, 4}, got)
	assert.Equal(t, 3, l.Len())
}

func TestListRemoveMiddle(t *testing.T) {
	l := NewList[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.PushBack(3)

	assert.True(t, l.Remove(func(v int) bool { return v == 2 }))

	var got []int
	l.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{1, 3}, got)
}

func TestListRemoveOnlyElementEmptiesList(t *testing.T) {
	l := NewList[string]()
	l.PushBack("solo")
	assert.True(t, l.Remove(func(v string) bool { return v == "solo" }))
	assert.Equal(t, 0, l.Len())

	l.PushBack("next")
	var got []string
	l.Each(func(v string) { got = append(got, v) })
	assert.Equal(t, []string{"next"}, got)
}

func TestListRemoveNotFound(t *testing.T) {
	l := NewList[int]()
	l.PushBack(1)
	assert.False(t, l.Remove(func(v int) bool { return v == 99 }))
	assert.Equal(t, 1, l.Len())
}

func TestListClear(t *testing.T) {
	l := NewList[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.Clear()
	assert.Equal(t, 0, l.Len())
	var got []int
	l.Each(func(v int) { got = append(got, v) })
	assert.Nil(t, got)
}
