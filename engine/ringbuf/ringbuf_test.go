package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPushPopRoundTrip(t *testing.T) {
	r := New(64)
	in := []byte("hello world, this fits")
	require.True(t, r.Push(in))
	require.Equal(t, len(in), r.Size())

	out := make([]byte, len(in))
	n := r.Pop(out)
	require.Equal(t, len(in), n)
	assert.Equal(t, in, out)
	assert.Equal(t, 0, r.Size())
}

func TestPushFailsWhenFull(t *testing.T) {
	r := New(4)
	assert.True(t, r.Push([]byte{1, 2, 3, 4}))
	assert.False(t, r.Push([]byte{5}))
	assert.Equal(t, 4, r.Size())
}

func TestPeekDoesNotAdvance(t *testing.T) {
	r := New(8)
	require.True(t, r.Push([]byte{1, 2, 3}))
	peeked := make([]byte, 3)
	n := r.Peek(peeked)
	require.Equal(t, 3, n)
	assert.Equal(t, 3, r.Size()) // unchanged

	popped := make([]byte, 3)
	r.Pop(popped)
	assert.Equal(t, peeked, popped)
	assert.Equal(t, 0, r.Size())
}

func TestWraparound(t *testing.T) {
	r := New(8)
	scratch := make([]byte, 5)
	for i := 0; i < 50; i++ {
		payload := []byte{byte(i), byte(i + 1), byte(i + 2)}
		require.True(t, r.Push(payload))
		n := r.Pop(scratch)
		require.Equal(t, 3, n)
		assert.Equal(t, payload, scratch[:3])
	}
}

func TestClear(t *testing.T) {
	r := New(8)
	require.True(t, r.Push([]byte{1, 2, 3}))
	r.Clear()
	assert.Equal(t, 0, r.Size())
	assert.True(t, r.Push([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
}

// TestSPSCProperty pushes and pops randomized payload sizes through the ring,
// with the consumer deliberately lagging the producer by a random number of
// pending pushes, and asserts the delivered byte stream exactly matches what
// was pushed with no reordering or tearing.
func TestSPSCProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(8, 256).Draw(t, "capacity")
		r := New(capacity)

		var pending [][]byte
		var want []byte
		var got []byte

		pushOrPop := rapid.SliceOfN(rapid.Bool(), 1, 200).Draw(t, "ops")
		for _, doPush := range pushOrPop {
			if doPush || len(pending) == 0 {
				n := rapid.IntRange(0, capacity/2).Draw(t, "payloadLen")
				payload := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "payload")
				if r.Push(payload) {
					pending = append(pending, payload)
					want = append(want, payload...)
				}
				continue
			}

			payload := pending[0]
			buf := make([]byte, len(payload))
			n := r.Pop(buf)
			require.Equal(t, len(payload), n)
			got = append(got, buf...)
			pending = pending[1:]
		}

		for _, payload := range pending {
			buf := make([]byte, len(payload))
			n := r.Pop(buf)
			require.Equal(t, len(payload), n)
			got = append(got, buf...)
		}

		assert.Equal(t, want, got)
	})
}
