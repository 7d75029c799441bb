package tools

import "encoding/json"

const (
	CreateLinkToken          = "create_link_token"
	ExchangePublicToken      = "exchange_public_token"
	GetAccounts              = "get_accounts"
	GetBalance               = "get_balance"
	GetAuth                  = "get_auth"
	SyncTransactions         = "sync_transactions"
	GetTransactions          = "get_transactions"
	GetRecurringTransactions = "get_recurring_transactions"
	SetRefreshSchedule       = "set_refresh_schedule"
	ProcessWebhook           = "process_webhook"
)

type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`

	transactions bool
}

var definitions = []Tool{
	{
		Name:        CreateLinkToken,
		Description: "Create a Plaid Link token the client uses to connect a financial institution.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128},
				"redirect_uri": {"type": "string", "minLength": 1},
				"products": {
					"type": "array",
					"items": {"type": "string", "enum": ["transactions", "auth", "identity", "investments", "liabilities", "assets"]},
					"minItems": 1,
					"uniqueItems": true
				},
				"days_requested": {"type": "integer", "minimum": 1, "maximum": 730}
			},
			"required": ["user_id"]
		}`),
	},
	{
		Name:        ExchangePublicToken,
		Description: "Exchange a public token from Plaid Link for a stored access token, fetch accounts and run the first transaction sync.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128},
				"public_token": {"type": "string", "minLength": 1}
			},
			"required": ["user_id", "public_token"]
		}`),
	},
	{
		Name:        GetAccounts,
		Description: "List the user's linked accounts, served from cache unless force_refresh is set.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128},
				"force_refresh": {"type": "boolean"}
			},
			"required": ["user_id"]
		}`),
	},
	{
		Name:        GetBalance,
		Description: "Fetch real-time balances for the user's accounts.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128},
				"account_ids": {"type": "array", "items": {"type": "string", "minLength": 1}}
			},
			"required": ["user_id"]
		}`),
	},
	{
		Name:        GetAuth,
		Description: "Fetch ACH account and routing numbers for the user's depository accounts.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128}
			},
			"required": ["user_id"]
		}`),
	},
	{
		Name:         SyncTransactions,
		Description:  "Pull new, modified and removed transactions since the last sync into the stored ledger.",
		transactions: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128},
				"force_refresh": {"type": "boolean"}
			},
			"required": ["user_id"]
		}`),
	},
	{
		Name:         GetTransactions,
		Description:  "Query transactions directly from Plaid for a date window. Defaults to the last 30 days.",
		transactions: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128},
				"start_date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
				"end_date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
				"account_id": {"type": "string", "minLength": 1},
				"count": {"type": "integer", "minimum": 1, "maximum": 500},
				"offset": {"type": "integer", "minimum": 0}
			},
			"required": ["user_id"]
		}`),
	},
	{
		Name:         GetRecurringTransactions,
		Description:  "List recurring inflow and outflow streams detected by Plaid.",
		transactions: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128},
				"account_ids": {"type": "array", "items": {"type": "string", "minLength": 1}}
			},
			"required": ["user_id"]
		}`),
	},
	{
		Name:         SetRefreshSchedule,
		Description:  "Set how often the user's transactions are refreshed and synced in the background.",
		transactions: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"user_id": {"type": "string", "minLength": 1, "maxLength": 128},
				"frequency": {"type": "string", "enum": ["daily", "weekly", "monthly", "custom"]},
				"custom_schedule": {"type": "string", "minLength": 1}
			},
			"required": ["user_id", "frequency"],
			"if": {"properties": {"frequency": {"const": "custom"}}},
			"then": {"required": ["custom_schedule"]}
		}`),
	},
	{
		Name:        ProcessWebhook,
		Description: "Process a Plaid webhook body: record it for the owning user and sync transactions when new data is available.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"webhook_body": {
					"type": "object",
					"properties": {
						"webhook_type": {"type": "string"},
						"webhook_code": {"type": "string"},
						"item_id": {"type": "string", "minLength": 1}
					},
					"required": ["webhook_type", "webhook_code", "item_id"]
				}
			},
			"required": ["webhook_body"]
		}`),
	},
}
