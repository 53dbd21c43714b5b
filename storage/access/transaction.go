package access

import "github.com/ryogrid/KiriDB/types"

type TransactionState int32

const (
	GROWING TransactionState = iota
	COMMITTED
	ABORTED
)

// Snapshot freezes what a transaction is allowed to see: every transaction
// id below xmax that was not active at snapshot time and committed since.
type Snapshot struct {
	// first txn id NOT visible to this snapshot
	xmax types.TxnID
	// txn ids below xmax that were still in flight at snapshot time
	active map[types.TxnID]struct{}
}

func NewSnapshot(xmax types.TxnID, active []types.TxnID) *Snapshot {
	activeSet := make(map[types.TxnID]struct{}, len(active))
	for _, id := range active {
		activeSet[id] = struct{}{}
	}
	return &Snapshot{xmax: xmax, active: activeSet}
}

// Contains reports whether txnId's effects are inside the snapshot horizon,
// regardless of its commit status.
func (s *Snapshot) Contains(txnId types.TxnID) bool {
	if txnId >= s.xmax {
		return false
	}
	_, wasActive := s.active[txnId]
	return !wasActive
}

// Transaction is one logical thread of query execution. The planner holds no
// locks through it; it only carries the snapshot the executor reads under.
type Transaction struct {
	txnId    types.TxnID
	state    TransactionState
	snapshot *Snapshot
	// cooperative cancel flag, observed by executors at bounded intervals
	cancelRequested bool
}

func NewTransaction(txnId types.TxnID, snapshot *Snapshot) *Transaction {
	return &Transaction{txnId: txnId, state: GROWING, snapshot: snapshot}
}

func (t *Transaction) GetTransactionId() types.TxnID {
	return t.txnId
}

func (t *Transaction) GetState() TransactionState {
	return t.state
}

func (t *Transaction) SetState(state TransactionState) {
	t.state = state
}

func (t *Transaction) GetSnapshot() *Snapshot {
	return t.snapshot
}

func (t *Transaction) RequestCancel() {
	t.cancelRequested = true
}

func (t *Transaction) IsCancelRequested() bool {
	return t.cancelRequested
}
