package types

// TxnID is the identifier of a transaction. IDs are handed out monotonically
// by the transaction manager, so comparing two TxnIDs orders the transactions
// by their begin time.
type TxnID uint32

const InvalidTxnID TxnID = 0
