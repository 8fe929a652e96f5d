package box

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkChildren_OrderAndOffsets(t *testing.T) {
	tfhd := makeBox("tfhd", []byte{0, 0, 0, 0})
	trun := makeBox("trun", []byte{1, 2, 3, 4})
	traf := makeBox("traf", append(append([]byte{}, tfhd...), trun...))

	var types []string
	var offsets []int
	WalkChildren(traf, func(c Child) bool {
		types = append(types, string(c.Type[:]))
		offsets = append(offsets, c.Offset)
		return true
	})
	require.Equal(t, []string{"tfhd", "trun"}, types)
	require.Equal(t, []int{8, 20}, offsets)
}

func TestWalkChildren_StopsOnZeroSize(t *testing.T) {
	bad := make([]byte, 8) // sizeField == 0
	copy(bad[4:8], "zero")
	tail := makeBox("tfhd", nil)
	parent := append(append(makeBox("traf", nil), bad...), tail...)

	var count int
	WalkChildren(parent, func(c Child) bool {
		count++
		return true
	})
	require.Equal(t, 0, count)
}

func TestWalkChildren_StopsOnOverrun(t *testing.T) {
	over := make([]byte, 8)
	over[3] = 200 // huge size, extends past parent
	copy(over[4:8], "over")
	parent := append(makeBox("traf", nil), over...)

	var count int
	WalkChildren(parent, func(c Child) bool {
		count++
		return true
	})
	require.Equal(t, 0, count)
}

func TestWalkChildren_EarlyStop(t *testing.T) {
	a := makeBox("aaaa", nil)
	b := makeBox("bbbb", nil)
	parent := append(append(makeBox("traf", nil), a...), b...)

	var types []string
	WalkChildren(parent, func(c Child) bool {
		types = append(types, string(c.Type[:]))
		return false
	})
	require.Equal(t, []string{"aaaa"}, types)
}
