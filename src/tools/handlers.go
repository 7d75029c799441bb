package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"plaid-mcp-server/src/db"
	"plaid-mcp-server/src/models"
	"plaid-mcp-server/src/plaid"
	"plaid-mcp-server/src/txsync"
	"plaid-mcp-server/src/util"
)

const defaultTransactionWindowDays = 30

func decode(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func checkUserID(userID string) error {
	if !util.ValidateUserID(userID) {
		return fmt.Errorf("invalid user_id %q", userID)
	}
	return nil
}

func (s *Service) createLinkToken(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID        string   `json:"user_id"`
		RedirectURI   string   `json:"redirect_uri"`
		Products      []string `json:"products"`
		DaysRequested int32    `json:"days_requested"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}
	if err := checkUserID(req.UserID); err != nil {
		return nil, err
	}

	if len(req.Products) == 0 {
		if s.options.EnableTransactions {
			req.Products = []string{"transactions"}
		} else {
			req.Products = []string{"auth"}
		}
	}
	if req.DaysRequested == 0 {
		req.DaysRequested = s.options.DaysRequested
	}

	token, err := s.provider.CreateLinkToken(ctx, plaid.LinkTokenRequest{
		UserID:        req.UserID,
		RedirectURI:   req.RedirectURI,
		Products:      req.Products,
		DaysRequested: req.DaysRequested,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}

	log.Printf("INFO: Created link token for user %s", req.UserID)
	return Envelope{
		"link_token": token.LinkToken,
		"expiration": token.Expiration,
		"request_id": token.RequestID,
	}, nil
}

func (s *Service) exchangePublicToken(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID      string `json:"user_id"`
		PublicToken string `json:"public_token"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}
	if err := checkUserID(req.UserID); err != nil {
		return nil, err
	}

	accessToken, itemID, err := s.provider.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	institutionID, err := s.provider.GetInstitutionID(ctx, accessToken)
	if err != nil {
		// institution details are optional
		log.Printf("WARN: Failed to fetch institution for user %s: %v", req.UserID, err)
	}

	prev, err := s.store.GetItem(ctx, req.UserID)
	switch {
	case err == nil && prev.ItemID != itemID:
		if err := s.store.ResetLedger(ctx, req.UserID); err != nil {
			return nil, fmt.Errorf("failed to reset ledger for relinked user: %w", err)
		}
		log.Printf("INFO: User %s relinked from item %s to %s, ledger reset", req.UserID, prev.ItemID, itemID)
	case err != nil && !errors.Is(err, db.ErrNotLinked):
		return nil, fmt.Errorf("failed to load existing item: %w", err)
	}

	item := models.PlaidItem{
		UserID:        req.UserID,
		ItemID:        itemID,
		AccessToken:   accessToken,
		InstitutionID: institutionID,
	}
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save plaid item: %w", err)
	}
	s.cache.Del(req.UserID)

	log.Printf("INFO: Successfully exchanged public token and saved plaid item for user %s, item %s", req.UserID, itemID)

	env := Envelope{
		"user_id":        req.UserID,
		"item_id":        itemID,
		"institution_id": institutionID,
	}

	accounts, err := s.provider.GetAccounts(ctx, accessToken)
	if err != nil {
		log.Printf("WARN: Initial account fetch for user %s failed: %v", req.UserID, err)
		env["accounts_error"] = err.Error()
	} else {
		s.cache.Set(req.UserID, accounts)
		env["accounts"] = accounts
	}

	if !s.options.EnableTransactions {
		return env, nil
	}

	result, err := s.syncer.AdvanceSync(ctx, req.UserID)
	txsync.RecordRun("exchange", err)
	if err != nil {
		log.Printf("WARN: Initial transaction sync for user %s failed: %v", req.UserID, err)
		env["initial_sync_error"] = err.Error()
	} else {
		env["initial_sync"] = result.Summary()
	}

	setting, err := s.scheduler.Configure(ctx, req.UserID, models.FrequencyDaily, "")
	if err != nil {
		log.Printf("ERROR: Failed to schedule daily refresh for user %s: %v", req.UserID, err)
		env["refresh_schedule_error"] = err.Error()
	} else {
		env["refresh_setting"] = setting
	}

	return env, nil
}

func (s *Service) getAccounts(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID       string `json:"user_id"`
		ForceRefresh bool   `json:"force_refresh"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}

	if !req.ForceRefresh {
		if accounts, ok := s.cache.Get(req.UserID); ok {
			return Envelope{"accounts": accounts, "cached": true}, nil
		}
	}

	item, err := s.linkedItem(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.provider.GetAccounts(ctx, item.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	s.cache.Set(req.UserID, accounts)

	return Envelope{"accounts": accounts, "cached": false}, nil
}

func (s *Service) getBalance(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID     string   `json:"user_id"`
		AccountIDs []string `json:"account_ids"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}

	item, err := s.linkedItem(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.provider.GetBalances(ctx, item.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	s.cache.Set(req.UserID, accounts)

	if len(req.AccountIDs) > 0 {
		wanted := make(map[string]bool, len(req.AccountIDs))
		for _, id := range req.AccountIDs {
			wanted[id] = true
		}
		filtered := make([]models.Account, 0, len(req.AccountIDs))
		for _, account := range accounts {
			if wanted[account.AccountID] {
				filtered = append(filtered, account)
			}
		}
		accounts = filtered
	}

	return Envelope{"accounts": accounts}, nil
}

func (s *Service) getAuth(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}

	item, err := s.linkedItem(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	numbers, err := s.provider.GetAuth(ctx, item.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auth numbers: %w", err)
	}

	return Envelope{"ach": numbers}, nil
}

func (s *Service) syncTransactions(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID       string `json:"user_id"`
		ForceRefresh bool   `json:"force_refresh"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}
	if _, err := s.linkedItem(ctx, req.UserID); err != nil {
		return nil, err
	}

	var (
		result *models.SyncResult
		err    error
	)
	if req.ForceRefresh {
		result, err = s.syncer.RefreshAndSync(ctx, req.UserID)
	} else {
		result, err = s.syncer.AdvanceSync(ctx, req.UserID)
	}
	txsync.RecordRun("manual", err)
	if err != nil {
		if result != nil && result.Pages > 0 {
			return nil, fmt.Errorf("sync stopped after %d merged pages, retry to resume: %w", result.Pages, err)
		}
		return nil, fmt.Errorf("failed to sync transactions: %w", err)
	}

	summary := result.Summary()
	return Envelope{
		"user_id":         req.UserID,
		"added":           summary.Added,
		"modified":        summary.Modified,
		"removed":         summary.Removed,
		"pages":           summary.Pages,
		"has_more":        summary.HasMore,
		"cursor_advanced": summary.CursorAdvanced,
	}, nil
}

func (s *Service) getTransactions(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID    string `json:"user_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		AccountID string `json:"account_id"`
		Count     *int32 `json:"count"`
		Offset    int32  `json:"offset"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}

	today := s.now()
	if req.EndDate == "" {
		req.EndDate = today.Format(util.DateLayout)
	}
	if req.StartDate == "" {
		req.StartDate = today.AddDate(0, 0, -defaultTransactionWindowDays).Format(util.DateLayout)
	}
	if !util.ValidateDate(req.StartDate) || !util.ValidateDate(req.EndDate) {
		return nil, fmt.Errorf("dates must be valid YYYY-MM-DD values")
	}
	if !util.ValidateDateRange(req.StartDate, req.EndDate) {
		return nil, fmt.Errorf("start_date %s is after end_date %s", req.StartDate, req.EndDate)
	}
	count := int32(100)
	if req.Count != nil {
		count = *req.Count
	}

	item, err := s.linkedItem(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	query := plaid.TransactionQuery{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Count:     count,
		Offset:    req.Offset,
	}
	if req.AccountID != "" {
		query.AccountIDs = []string{req.AccountID}
	}

	page, err := s.provider.GetTransactions(ctx, item.AccessToken, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return Envelope{
		"start_date":         req.StartDate,
		"end_date":           req.EndDate,
		"transactions":       page.Transactions,
		"accounts":           page.Accounts,
		"total_transactions": page.Total,
		"count":              len(page.Transactions),
		"offset":             req.Offset,
	}, nil
}

func (s *Service) getRecurringTransactions(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID     string   `json:"user_id"`
		AccountIDs []string `json:"account_ids"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}

	item, err := s.linkedItem(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	streams, err := s.provider.GetRecurringTransactions(ctx, item.AccessToken, req.AccountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recurring transactions: %w", err)
	}

	return Envelope{
		"inflow_streams":  streams.Inflow,
		"outflow_streams": streams.Outflow,
	}, nil
}

func (s *Service) setRefreshSchedule(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		UserID         string `json:"user_id"`
		Frequency      string `json:"frequency"`
		CustomSchedule string `json:"custom_schedule"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}

	setting, err := s.scheduler.Configure(ctx, req.UserID, models.Frequency(req.Frequency), req.CustomSchedule)
	if err != nil {
		return nil, err
	}

	return Envelope{"refresh_setting": setting}, nil
}

func (s *Service) processWebhook(ctx context.Context, args json.RawMessage) (Envelope, error) {
	var req struct {
		WebhookBody json.RawMessage `json:"webhook_body"`
	}
	if err := decode(args, &req); err != nil {
		return nil, err
	}

	result, err := s.dispatcher.Handle(ctx, req.WebhookBody)
	if err != nil {
		return nil, err
	}

	return Envelope{"result": result}, nil
}
