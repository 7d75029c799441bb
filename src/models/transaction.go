package models

type Transaction struct {
	TransactionID  string  `json:"transaction_id"`
	AccountID      string  `json:"account_id"`
	Amount         float64 `json:"amount"`
	Date           string  `json:"date"`
	Name           string  `json:"name"`
	MerchantName   string  `json:"merchant_name,omitempty"`
	Category       string  `json:"category,omitempty"`
	Pending        bool    `json:"pending"`
	Currency       string  `json:"currency,omitempty"`
	PaymentChannel string  `json:"payment_channel,omitempty"`
}

// TransactionDelta is one batch of changes reported by the delta-sync endpoint.
type TransactionDelta struct {
	Added    []Transaction `json:"added"`
	Modified []Transaction `json:"modified"`
	Removed  []string      `json:"removed"`
}

func (d TransactionDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

type RecurringStream struct {
	StreamID      string   `json:"stream_id"`
	AccountID     string   `json:"account_id"`
	Description   string   `json:"description"`
	MerchantName  string   `json:"merchant_name,omitempty"`
	Frequency     string   `json:"frequency"`
	AverageAmount float64  `json:"average_amount"`
	LastAmount    float64  `json:"last_amount"`
	FirstDate     string   `json:"first_date"`
	LastDate      string   `json:"last_date"`
	IsActive      bool     `json:"is_active"`
	Status        string   `json:"status"`
	Category      string   `json:"category,omitempty"`
	Transactions  []string `json:"transaction_ids,omitempty"`
}
