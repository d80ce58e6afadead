package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/util"
)

func TestEmptySet(t *testing.T) {
	s := util.Set[string]{}
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
}

func TestSetOfDuplicates(t *testing.T) {
	s := util.SetOf("a", "b", "a", "c", "b")
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("a"))
	assert.True(t, s.Contains("c"))
}

func TestAddRemove(t *testing.T) {
	s := util.SetOf[string]()
	s.Add("x")
	assert.True(t, s.Contains("x"))

	s.Remove("x")
	s.Remove("missing")
	assert.False(t, s.Contains("x"))
	assert.True(t, s.IsEmpty())
}
