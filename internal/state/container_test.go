package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainer_GetSet(t *testing.T) {
	c := New(1)
	assert.Equal(t, 1, c.Get())

	got := c.Set(func(v int) int { return v + 41 })
	assert.Equal(t, 42, got)
	assert.Equal(t, 42, c.Get())
}

func TestContainer_Subscribe(t *testing.T) {
	c := New("a")

	var seen []string
	unsub := c.Subscribe(func(v string) { seen = append(seen, v) })

	c.Set(func(string) string { return "b" })
	c.Set(func(string) string { return "c" })
	assert.Equal(t, []string{"b", "c"}, seen)

	unsub()
	c.Set(func(string) string { return "d" })
	assert.Equal(t, []string{"b", "c"}, seen, "unsubscribed listener should not fire")
}

func TestContainer_OnChange(t *testing.T) {
	c := New(0)

	var persisted []int
	c.OnChange(func(v int) { persisted = append(persisted, v) })

	c.Set(func(int) int { return 1 })
	c.Set(func(int) int { return 2 })
	assert.Equal(t, []int{1, 2}, persisted)
}

func TestContainer_ReadAfterWrite(t *testing.T) {
	c := New([]int(nil))

	c.Set(func(v []int) []int { return append(v, 7) })
	assert.Equal(t, []int{7}, c.Get(), "a read immediately after a write observes the write")
}
