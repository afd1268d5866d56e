package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestFindCyclesNone(t *testing.T) {
	parents := map[int64]*int64{
		1: nil,
		2: ptr(1),
		3: ptr(2),
	}
	assert.Empty(t, findCycles(parents))
}

func TestFindCyclesSelfReference(t *testing.T) {
	parents := map[int64]*int64{
		1: ptr(1),
		2: nil,
	}
	cycles := findCycles(parents)
	require.Len(t, cycles, 1)
	assert.Equal(t, []int64{1}, cycles[0])
}

func TestFindCyclesTwoNodeLoop(t *testing.T) {
	parents := map[int64]*int64{
		1: ptr(2),
		2: ptr(1),
		3: ptr(1),
	}
	cycles := findCycles(parents)
	require.Len(t, cycles, 1)
	assert.Equal(t, []int64{1, 2}, cycles[0])
}

func TestFindCyclesReportsEachLoopOnce(t *testing.T) {
	parents := map[int64]*int64{
		1: ptr(2),
		2: ptr(1),
		3: ptr(4),
		4: ptr(3),
		5: ptr(1),
		6: nil,
	}
	cycles := findCycles(parents)
	require.Len(t, cycles, 2)
	assert.Equal(t, []int64{1, 2}, cycles[0])
	assert.Equal(t, []int64{3, 4}, cycles[1])
}

func TestFindCyclesDanglingParent(t *testing.T) {
	parents := map[int64]*int64{
		1: ptr(99),
	}
	assert.Empty(t, findCycles(parents))
}
