package plaid

import (
	"testing"

	"github.com/plaid/plaid-go/v41/plaid"
)

func TestConvertTransaction(t *testing.T) {
	var txn plaid.Transaction
	txn.SetTransactionId("t1")
	txn.SetAccountId("acc-1")
	txn.SetAmount(-20)
	txn.SetDate("2024-05-01")
	txn.SetName("Coffee")
	txn.SetMerchantName("Blue Bottle")
	txn.SetPending(true)
	txn.SetIsoCurrencyCode("USD")
	txn.SetPersonalFinanceCategory(plaid.PersonalFinanceCategory{Primary: "FOOD_AND_DRINK", Detailed: "FOOD_AND_DRINK_COFFEE"})

	got := convertTransaction(txn)

	if got.TransactionID != "t1" || got.AccountID != "acc-1" || got.Amount != -20 {
		t.Errorf("identity fields = %+v", got)
	}
	if got.Date != "2024-05-01" || got.Name != "Coffee" || got.MerchantName != "Blue Bottle" {
		t.Errorf("descriptive fields = %+v", got)
	}
	if !got.Pending || got.Currency != "USD" || got.Category != "FOOD_AND_DRINK" {
		t.Errorf("flags = %+v", got)
	}
}

func TestConvertTransactionWithoutCategory(t *testing.T) {
	var txn plaid.Transaction
	txn.SetTransactionId("t2")

	if got := convertTransaction(txn); got.Category != "" || got.MerchantName != "" {
		t.Errorf("expected empty optional fields, got %+v", got)
	}
}

func TestContainsProduct(t *testing.T) {
	tests := []struct {
		products []string
		product  string
		want     bool
	}{
		{[]string{"auth", "transactions"}, "transactions", true},
		{[]string{"auth"}, "transactions", false},
		{nil, "auth", false},
	}
	for _, tt := range tests {
		if got := containsProduct(tt.products, tt.product); got != tt.want {
			t.Errorf("containsProduct(%v, %q) = %v, want %v", tt.products, tt.product, got, tt.want)
		}
	}
}

func TestNewPlaidClientRejectsUnknownEnvironment(t *testing.T) {
	if _, err := NewPlaidClient("id", "secret", "development"); err == nil {
		t.Error("expected error for unsupported environment")
	}
	if _, err := NewPlaidClient("id", "secret", "sandbox"); err != nil {
		t.Errorf("sandbox: %v", err)
	}
}
