package plaid

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"

	"plaid-mcp-server/src/models"
)

func NewPlaidClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %s", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

type LinkOptions struct {
	ClientName   string
	Language     string
	CountryCodes []string
	WebhookURL   string
}

type LinkTokenRequest struct {
	UserID        string
	RedirectURI   string
	Products      []string
	DaysRequested int32
}

type LinkToken struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

type TransactionQuery struct {
	StartDate  string
	EndDate    string
	AccountIDs []string
	Count      int32
	Offset     int32
}

type TransactionsPage struct {
	Transactions []models.Transaction `json:"transactions"`
	Accounts     []models.Account     `json:"accounts"`
	Total        int                  `json:"total_transactions"`
}

type RecurringStreams struct {
	Inflow  []models.RecurringStream `json:"inflow_streams"`
	Outflow []models.RecurringStream `json:"outflow_streams"`
}

// Client adapts the generated Plaid API client to the operations this
// server performs.
type Client struct {
	api  *plaid.APIClient
	link LinkOptions
}

func NewClient(api *plaid.APIClient, link LinkOptions) *Client {
	return &Client{api: api, link: link}
}

func (c *Client) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (*LinkToken, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: req.UserID,
	}
	countryCodes := make([]plaid.CountryCode, 0, len(c.link.CountryCodes))
	for _, code := range c.link.CountryCodes {
		countryCodes = append(countryCodes, plaid.CountryCode(code))
	}
	request := plaid.NewLinkTokenCreateRequest(
		c.link.ClientName,
		c.link.Language,
		countryCodes,
	)
	request.SetUser(user)

	products := make([]plaid.Products, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, plaid.Products(p))
	}
	request.SetProducts(products)
	if req.RedirectURI != "" {
		request.SetRedirectUri(req.RedirectURI)
	}
	if c.link.WebhookURL != "" {
		request.SetWebhook(c.link.WebhookURL)
	}
	if req.DaysRequested > 0 && containsProduct(req.Products, string(plaid.PRODUCTS_TRANSACTIONS)) {
		days := req.DaysRequested
		request.SetTransactions(plaid.LinkTokenTransactions{DaysRequested: &days})
	}

	resp, _, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return nil, describe(err)
	}

	return &LinkToken{
		LinkToken:  resp.GetLinkToken(),
		Expiration: resp.GetExpiration().Format(time.RFC3339),
		RequestID:  resp.GetRequestId(),
	}, nil
}

// ExchangePublicToken returns the durable access token and item id.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", describe(err)
	}
	return resp.GetAccessToken(), resp.GetItemId(), nil
}

func (c *Client) GetInstitutionID(ctx context.Context, accessToken string) (string, error) {
	request := plaid.NewItemGetRequest(accessToken)
	resp, _, err := c.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*request).Execute()
	if err != nil {
		return "", describe(err)
	}
	item := resp.GetItem()
	if item.InstitutionId.IsSet() && item.InstitutionId.Get() != nil {
		return *item.InstitutionId.Get(), nil
	}
	return "", nil
}

func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]models.Account, error) {
	request := plaid.NewAccountsGetRequest(accessToken)
	resp, _, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
	if err != nil {
		return nil, describe(err)
	}
	return convertAccounts(resp.GetAccounts()), nil
}

func (c *Client) GetBalances(ctx context.Context, accessToken string) ([]models.Account, error) {
	request := plaid.NewAccountsBalanceGetRequest(accessToken)
	resp, _, err := c.api.PlaidApi.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*request).Execute()
	if err != nil {
		return nil, describe(err)
	}
	return convertAccounts(resp.GetAccounts()), nil
}

func (c *Client) GetAuth(ctx context.Context, accessToken string) ([]models.AchNumbers, error) {
	request := plaid.NewAuthGetRequest(accessToken)
	resp, _, err := c.api.PlaidApi.AuthGet(ctx).AuthGetRequest(*request).Execute()
	if err != nil {
		return nil, describe(err)
	}

	numbers := resp.GetNumbers()
	ach := numbers.GetAch()
	result := make([]models.AchNumbers, 0, len(ach))
	for _, n := range ach {
		result = append(result, models.AchNumbers{
			AccountID:   n.GetAccountId(),
			Account:     n.GetAccount(),
			Routing:     n.GetRouting(),
			WireRouting: n.GetWireRouting(),
		})
	}
	return result, nil
}

func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string, count int32) (*models.SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}
	if count > 0 {
		request.SetCount(count)
	}

	resp, _, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return nil, describe(err)
	}

	removed := make([]string, 0, len(resp.GetRemoved()))
	for _, r := range resp.GetRemoved() {
		removed = append(removed, r.GetTransactionId())
	}

	return &models.SyncPage{
		TransactionDelta: models.TransactionDelta{
			Added:    convertTransactions(resp.GetAdded()),
			Modified: convertTransactions(resp.GetModified()),
			Removed:  removed,
		},
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}, nil
}

func (c *Client) RefreshTransactions(ctx context.Context, accessToken string) error {
	request := plaid.NewTransactionsRefreshRequest(accessToken)
	_, _, err := c.api.PlaidApi.TransactionsRefresh(ctx).TransactionsRefreshRequest(*request).Execute()
	if err != nil {
		return describe(err)
	}
	return nil
}

func (c *Client) GetTransactions(ctx context.Context, accessToken string, q TransactionQuery) (*TransactionsPage, error) {
	request := plaid.NewTransactionsGetRequest(accessToken, q.StartDate, q.EndDate)

	options := plaid.TransactionsGetRequestOptions{}
	if len(q.AccountIDs) > 0 {
		options.SetAccountIds(q.AccountIDs)
	}
	if q.Count > 0 {
		options.SetCount(q.Count)
	}
	options.SetOffset(q.Offset)
	request.SetOptions(options)

	resp, _, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
	if err != nil {
		return nil, describe(err)
	}

	return &TransactionsPage{
		Transactions: convertTransactions(resp.GetTransactions()),
		Accounts:     convertAccounts(resp.GetAccounts()),
		Total:        int(resp.GetTotalTransactions()),
	}, nil
}

func (c *Client) GetRecurringTransactions(ctx context.Context, accessToken string, accountIDs []string) (*RecurringStreams, error) {
	request := plaid.NewTransactionsRecurringGetRequest(accessToken)
	if len(accountIDs) > 0 {
		request.SetAccountIds(accountIDs)
	}

	resp, _, err := c.api.PlaidApi.TransactionsRecurringGet(ctx).TransactionsRecurringGetRequest(*request).Execute()
	if err != nil {
		return nil, describe(err)
	}

	return &RecurringStreams{
		Inflow:  convertStreams(resp.GetInflowStreams()),
		Outflow: convertStreams(resp.GetOutflowStreams()),
	}, nil
}

func (c *Client) GetWebhookVerificationKey(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	request := *plaid.NewWebhookVerificationKeyGetRequest(kid)
	resp, _, err := c.api.PlaidApi.WebhookVerificationKeyGet(ctx).
		WebhookVerificationKeyGetRequest(request).
		Execute()
	if err != nil {
		return nil, describe(err)
	}
	key := resp.GetKey()
	return &key, nil
}

// describe folds the Plaid error body into the error message; the generated
// client only reports the HTTP status otherwise.
func describe(err error) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return err
	}
	log.Printf("ERROR: Plaid API error %s/%s (request %s)", plaidErr.GetErrorType(), plaidErr.GetErrorCode(), plaidErr.GetRequestId())
	return fmt.Errorf("plaid %s: %s", plaidErr.GetErrorCode(), plaidErr.GetErrorMessage())
}

func containsProduct(products []string, product string) bool {
	for _, p := range products {
		if p == product {
			return true
		}
	}
	return false
}
