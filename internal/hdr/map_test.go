package hdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapSetGetCanonicalizesKey(t *testing.T) {
	m := NewMap()
	m.Set("content-type", "text/plain")
	assert.Equal(t, "text/plain", m.Get("Content-Type"))
	assert.True(t, m.Has("CONTENT-TYPE"))
}

func TestMapSetOverwritesValueKeepsPosition(t *testing.T) {
	m := NewMap()
	m.Set("A", "1")
	m.Set("B", "2")
	m.Set("A", "3")

	assert.Equal(t, []string{"A", "B"}, m.Keys())
	assert.Equal(t, "3", m.Get("A"))
}

func TestMapDelRemovesKeyAndPosition(t *testing.T) {
	m := NewMap()
	m.Set("A", "1")
	m.Set("B", "2")
	m.Del("A")

	assert.False(t, m.Has("A"))
	assert.Equal(t, []string{"B"}, m.Keys())
}

func TestMapResetClearsInPlace(t *testing.T) {
	m := NewMap()
	m.Set("A", "1")
	m.Reset()

	assert.Empty(t, m.Keys())
	assert.False(t, m.Has("A"))
}

func TestMapCloneIsIndependent(t *testing.T) {
	m := NewMap()
	m.Set("A", "1")
	c := m.Clone()
	c.Set("A", "2")

	assert.Equal(t, "1", m.Get("A"))
	assert.Equal(t, "2", c.Get("A"))
}

func TestMapGetOnNilMapIsEmpty(t *testing.T) {
	var m *Map
	assert.Equal(t, "", m.Get("A"))
	assert.False(t, m.Has("A"))
}
