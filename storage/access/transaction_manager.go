package access

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/ryogrid/KiriDB/types"
)

type txnStatus int

const (
	txnInProgress txnStatus = iota
	txnCommitted
	txnAborted
)

// TransactionManager hands out transaction ids and remembers the commit
// status of every id it ever issued (the CLOG analogue). Snapshots are built
// from the active set at Begin time.
type TransactionManager struct {
	nextTxnId types.TxnID
	statuses  map[types.TxnID]txnStatus
	active    map[types.TxnID]struct{}
	mutex     deadlock.RWMutex
}

func NewTransactionManager() *TransactionManager {
	return &TransactionManager{
		nextTxnId: 1,
		statuses:  make(map[types.TxnID]txnStatus),
		active:    make(map[types.TxnID]struct{}),
	}
}

func (tm *TransactionManager) Begin() *Transaction {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	txnId := tm.nextTxnId
	tm.nextTxnId++
	tm.statuses[txnId] = txnInProgress

	activeIds := make([]types.TxnID, 0, len(tm.active))
	for id := range tm.active {
		activeIds = append(activeIds, id)
	}
	tm.active[txnId] = struct{}{}

	return NewTransaction(txnId, NewSnapshot(txnId, activeIds))
}

func (tm *TransactionManager) Commit(txn *Transaction) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.statuses[txn.GetTransactionId()] = txnCommitted
	delete(tm.active, txn.GetTransactionId())
	txn.SetState(COMMITTED)
}

func (tm *TransactionManager) Abort(txn *Transaction) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.statuses[txn.GetTransactionId()] = txnAborted
	delete(tm.active, txn.GetTransactionId())
	txn.SetState(ABORTED)
}

func (tm *TransactionManager) IsCommitted(txnId types.TxnID) bool {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return tm.statuses[txnId] == txnCommitted
}

// OldestActiveTxnId is the horizon used by the all-visible maintenance pass:
// versions created before it by committed transactions are visible to every
// current and future snapshot.
func (tm *TransactionManager) OldestActiveTxnId() types.TxnID {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	oldest := tm.nextTxnId
	for id := range tm.active {
		if id < oldest {
			oldest = id
		}
	}
	return oldest
}
