package plaid

import (
	"github.com/plaid/plaid-go/v41/plaid"

	"plaid-mcp-server/src/models"
)

func convertTransaction(txn plaid.Transaction) models.Transaction {
	category := ""
	if pfc, ok := txn.GetPersonalFinanceCategoryOk(); ok && pfc != nil {
		category = pfc.GetPrimary()
	}

	return models.Transaction{
		TransactionID:  txn.GetTransactionId(),
		AccountID:      txn.GetAccountId(),
		Amount:         txn.GetAmount(),
		Date:           txn.GetDate(),
		Name:           txn.GetName(),
		MerchantName:   txn.GetMerchantName(),
		Category:       category,
		Pending:        txn.GetPending(),
		Currency:       txn.GetIsoCurrencyCode(),
		PaymentChannel: txn.GetPaymentChannel(),
	}
}

func convertTransactions(txns []plaid.Transaction) []models.Transaction {
	result := make([]models.Transaction, 0, len(txns))
	for _, txn := range txns {
		result = append(result, convertTransaction(txn))
	}
	return result
}

func convertAccounts(accounts []plaid.AccountBase) []models.Account {
	result := make([]models.Account, 0, len(accounts))
	for _, acc := range accounts {
		balances := acc.GetBalances()
		account := models.Account{
			AccountID:    acc.GetAccountId(),
			Name:         acc.GetName(),
			OfficialName: acc.GetOfficialName(),
			Mask:         acc.GetMask(),
			Type:         string(acc.GetType()),
			Subtype:      string(acc.GetSubtype()),
			Currency:     balances.GetIsoCurrencyCode(),
		}
		if current, ok := balances.GetCurrentOk(); ok && current != nil {
			v := *current
			account.CurrentBalance = &v
		}
		if available, ok := balances.GetAvailableOk(); ok && available != nil {
			v := *available
			account.AvailableBalance = &v
		}
		result = append(result, account)
	}
	return result
}

func convertStreams(streams []plaid.TransactionStream) []models.RecurringStream {
	result := make([]models.RecurringStream, 0, len(streams))
	for _, s := range streams {
		averageAmount := s.GetAverageAmount()
		lastAmount := s.GetLastAmount()
		category := ""
		if pfc, ok := s.GetPersonalFinanceCategoryOk(); ok && pfc != nil {
			category = pfc.GetPrimary()
		}
		result = append(result, models.RecurringStream{
			StreamID:      s.GetStreamId(),
			AccountID:     s.GetAccountId(),
			Description:   s.GetDescription(),
			MerchantName:  s.GetMerchantName(),
			Frequency:     string(s.GetFrequency()),
			AverageAmount: averageAmount.GetAmount(),
			LastAmount:    lastAmount.GetAmount(),
			FirstDate:     s.GetFirstDate(),
			LastDate:      s.GetLastDate(),
			IsActive:      s.GetIsActive(),
			Status:        string(s.GetStatus()),
			Category:      category,
			Transactions:  s.GetTransactionIds(),
		})
	}
	return result
}
