package db

import (
	"sort"

	"plaid-mcp-server/src/models"
)

// ApplyDelta merges a delta into a ledger keyed by transaction id.
// Removals are applied first, then modifications, then additions; both
// modifications and additions are upserts so replaying a delta is a no-op.
func ApplyDelta(ledger map[string]models.Transaction, delta models.TransactionDelta) {
	for _, id := range delta.Removed {
		delete(ledger, id)
	}
	for _, txn := range delta.Modified {
		ledger[txn.TransactionID] = txn
	}
	for _, txn := range delta.Added {
		ledger[txn.TransactionID] = txn
	}
}

// SortTransactions orders newest first, ties broken by id.
func SortTransactions(txns []models.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].Date != txns[j].Date {
			return txns[i].Date > txns[j].Date
		}
		return txns[i].TransactionID < txns[j].TransactionID
	})
}
