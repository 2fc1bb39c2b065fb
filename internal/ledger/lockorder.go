package ledger

// LockOrder returns two account ids in canonical acquisition order
// (ascending id). Every operation that locks more than one account must
// take its locks in this order, regardless of which side is the source:
// locking in request order would let two opposite-direction transfers over
// the same pair of accounts deadlock each other.
func LockOrder(a, b int64) (int64, int64) {
	if b < a {
		return b, a
	}
	return a, b
}
