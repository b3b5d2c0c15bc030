package prioset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindMaxEmpty(t *testing.T) {
	var s Set
	assert.Equal(t, 0, s.FindMax())
	assert.False(t, s.NotEmpty())
}

func TestInsertRemoveFindMax(t *testing.T) {
	var s Set
	s.Insert(3)
	s.Insert(7)
	s.Insert(1)
	assert.True(t, s.Has(3))
	assert.Equal(t, 7, s.FindMax())

	s.Remove(7)
	assert.False(t, s.Has(7))
	assert.Equal(t, 3, s.FindMax())

	s.Remove(3)
	s.Remove(1)
	assert.False(t, s.NotEmpty())
}

func TestFindMaxArbitrarySets(t *testing.T) {
	cases := [][]int{
		{1},
		{64},
		{1, 64},
		{5, 10, 15, 20},
		{64, 1, 32},
	}
	for _, prios := range cases {
		var s Set
		max := 0
		for _, p := range prios {
			s.Insert(p)
			if p > max {
				max = p
			}
		}
		assert.Equal(t, max, s.FindMax())
	}
}

func TestClear(t *testing.T) {
	var s Set
	s.Insert(5)
	s.Clear()
	assert.False(t, s.NotEmpty())
}
