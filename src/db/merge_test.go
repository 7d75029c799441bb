package db

import (
	"reflect"
	"testing"

	"plaid-mcp-server/src/models"
)

func txn(id string, amount float64) models.Transaction {
	return models.Transaction{TransactionID: id, AccountID: "acc-1", Amount: amount, Date: "2024-05-01", Name: "txn " + id}
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name     string
		initial  []models.Transaction
		delta    models.TransactionDelta
		expected map[string]float64
	}{
		{
			name:     "Add into empty ledger",
			delta:    models.TransactionDelta{Added: []models.Transaction{txn("t1", -20)}},
			expected: map[string]float64{"t1": -20},
		},
		{
			name:     "Modify replaces existing record",
			initial:  []models.Transaction{txn("t1", -20)},
			delta:    models.TransactionDelta{Modified: []models.Transaction{txn("t1", -25)}},
			expected: map[string]float64{"t1": -25},
		},
		{
			name:     "Modify of unseen record inserts it",
			delta:    models.TransactionDelta{Modified: []models.Transaction{txn("t9", 4)}},
			expected: map[string]float64{"t9": 4},
		},
		{
			name:     "Remove deletes record",
			initial:  []models.Transaction{txn("t1", -20), txn("t2", 3)},
			delta:    models.TransactionDelta{Removed: []string{"t1"}},
			expected: map[string]float64{"t2": 3},
		},
		{
			name:     "Remove of unknown id is ignored",
			initial:  []models.Transaction{txn("t1", -20)},
			delta:    models.TransactionDelta{Removed: []string{"nope"}},
			expected: map[string]float64{"t1": -20},
		},
		{
			name:    "Removal then addition with same id keeps the addition",
			initial: []models.Transaction{txn("t1", -20)},
			delta: models.TransactionDelta{
				Removed: []string{"t1"},
				Added:   []models.Transaction{txn("t1", -30)},
			},
			expected: map[string]float64{"t1": -30},
		},
		{
			name:     "Add with existing id upserts instead of duplicating",
			initial:  []models.Transaction{txn("t1", -20)},
			delta:    models.TransactionDelta{Added: []models.Transaction{txn("t1", -21)}},
			expected: map[string]float64{"t1": -21},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := make(map[string]models.Transaction)
			for _, tx := range tt.initial {
				ledger[tx.TransactionID] = tx
			}

			ApplyDelta(ledger, tt.delta)

			got := make(map[string]float64, len(ledger))
			for id, tx := range ledger {
				got[id] = tx.Amount
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ledger = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestApplyDeltaIdempotent(t *testing.T) {
	delta := models.TransactionDelta{
		Added:    []models.Transaction{txn("t3", 10), txn("t4", 11)},
		Modified: []models.Transaction{txn("t1", -5)},
		Removed:  []string{"t2"},
	}

	once := map[string]models.Transaction{"t1": txn("t1", -1), "t2": txn("t2", -2)}
	ApplyDelta(once, delta)

	twice := map[string]models.Transaction{"t1": txn("t1", -1), "t2": txn("t2", -2)}
	ApplyDelta(twice, delta)
	ApplyDelta(twice, delta)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("applying delta twice = %v, once = %v", twice, once)
	}
}

func TestSortTransactions(t *testing.T) {
	txns := []models.Transaction{
		{TransactionID: "b", Date: "2024-01-02"},
		{TransactionID: "a", Date: "2024-01-02"},
		{TransactionID: "c", Date: "2024-03-01"},
	}
	SortTransactions(txns)

	var order []string
	for _, tx := range txns {
		order = append(order, tx.TransactionID)
	}
	if !reflect.DeepEqual(order, []string{"c", "a", "b"}) {
		t.Errorf("order = %v", order)
	}
}
