package konference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpyTable(t *testing.T) {
	st := newSpyTable()

	assert.False(t, st.pair(1, 1), "self pairing")
	assert.True(t, st.pair(3, 1))
	assert.False(t, st.pair(4, 1), "spyee already watched")
	assert.False(t, st.pair(3, 2), "spyer already watching")
	assert.False(t, st.pair(1, 2), "spyee cannot spy")

	p, ok := st.partner(1)
	assert.True(t, ok)
	assert.Equal(t, 3, p)
	assert.True(t, st.isSpyer(3))
	assert.False(t, st.isSpyer(1))
	assert.Equal(t, 1, st.len())

	partner, wasSpyer, ok := st.unpair(1)
	assert.True(t, ok)
	assert.False(t, wasSpyer)
	assert.Equal(t, 3, partner)
	assert.False(t, st.paired(3))
	assert.Zero(t, st.len())

	_, _, ok = st.unpair(1)
	assert.False(t, ok)

	assert.True(t, st.pair(4, 2))
	partner, wasSpyer, ok = st.unpair(4)
	assert.True(t, ok)
	assert.True(t, wasSpyer)
	assert.Equal(t, 2, partner)
}
