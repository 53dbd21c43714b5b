package access

// IsVisible applies the MVCC visibility rule: a tuple version can be seen by
// a transaction when its creator is committed inside the snapshot horizon
// (or is the transaction itself) and its superseder, if any, is not.
func IsVisible(meta *TupleMeta, txn *Transaction, tm *TransactionManager) bool {
	snap := txn.GetSnapshot()
	self := txn.GetTransactionId()

	// creator side
	if meta.Xmin == self {
		// own insert; deleted by self already?
		if meta.Xmax == self {
			return false
		}
	} else {
		if !snap.Contains(meta.Xmin) || !tm.IsCommitted(meta.Xmin) {
			return false
		}
	}

	// superseder side
	if meta.Xmax == 0 {
		return true
	}
	if meta.Xmax == self {
		return false
	}
	if snap.Contains(meta.Xmax) && tm.IsCommitted(meta.Xmax) {
		return false
	}
	// superseder uncommitted or outside the snapshot: the old version stays
	// visible
	return true
}

// IsVisibleToAll reports whether a version is visible to every current and
// future snapshot: created by a transaction committed before the oldest
// active one and never superseded. This is what the per-page all-visible bit
// summarizes.
func IsVisibleToAll(meta *TupleMeta, tm *TransactionManager) bool {
	return meta.Xmax == 0 &&
		meta.Xmin < tm.OldestActiveTxnId() &&
		tm.IsCommitted(meta.Xmin)
}
