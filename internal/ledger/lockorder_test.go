package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockOrderIsDeterministic(t *testing.T) {
	first, second := LockOrder(7, 3)
	assert.Equal(t, int64(3), first)
	assert.Equal(t, int64(7), second)

	// Same order regardless of which side is the source.
	first, second = LockOrder(3, 7)
	assert.Equal(t, int64(3), first)
	assert.Equal(t, int64(7), second)

	first, second = LockOrder(5, 5)
	assert.Equal(t, int64(5), first)
	assert.Equal(t, int64(5), second)
}
