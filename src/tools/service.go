package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"plaid-mcp-server/src/db"
	"plaid-mcp-server/src/metrics"
	"plaid-mcp-server/src/models"
	"plaid-mcp-server/src/plaid"
	"plaid-mcp-server/src/webhook"
)

var ErrTransactionsDisabled = errors.New("transactions are not enabled on this server")

type Provider interface {
	CreateLinkToken(ctx context.Context, req plaid.LinkTokenRequest) (*plaid.LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error)
	GetInstitutionID(ctx context.Context, accessToken string) (string, error)
	GetAccounts(ctx context.Context, accessToken string) ([]models.Account, error)
	GetBalances(ctx context.Context, accessToken string) ([]models.Account, error)
	GetAuth(ctx context.Context, accessToken string) ([]models.AchNumbers, error)
	GetTransactions(ctx context.Context, accessToken string, q plaid.TransactionQuery) (*plaid.TransactionsPage, error)
	GetRecurringTransactions(ctx context.Context, accessToken string, accountIDs []string) (*plaid.RecurringStreams, error)
}

type Syncer interface {
	AdvanceSync(ctx context.Context, userID string) (*models.SyncResult, error)
	RefreshAndSync(ctx context.Context, userID string) (*models.SyncResult, error)
}

type Scheduler interface {
	Configure(ctx context.Context, userID string, frequency models.Frequency, custom string) (*models.RefreshSetting, error)
	Active(userID string) bool
}

type Dispatcher interface {
	Handle(ctx context.Context, body []byte) (*webhook.DispatchResult, error)
}

type AccountCache interface {
	Get(userID string) ([]models.Account, bool)
	Set(userID string, accounts []models.Account)
	Del(userID string)
}

type Deps struct {
	Provider   Provider
	Store      db.Store
	Cache      AccountCache
	Syncer     Syncer
	Scheduler  Scheduler
	Dispatcher Dispatcher
}

type Options struct {
	EnableTransactions bool
	// DaysRequested is the transaction history requested at link time when
	// the caller does not ask for a specific window.
	DaysRequested int32
}

// Envelope is the body of every tool result: success plus the payload
// fields, or success false plus an error string.
type Envelope map[string]interface{}

func (e Envelope) OK() bool {
	ok, _ := e["success"].(bool)
	return ok
}

func failure(err error) Envelope {
	return Envelope{"success": false, "error": err.Error()}
}

type handlerFunc func(ctx context.Context, args json.RawMessage) (Envelope, error)

// Service implements the tool and resource surface over the sync engine,
// scheduler, dispatcher and provider.
type Service struct {
	provider   Provider
	store      db.Store
	cache      AccountCache
	syncer     Syncer
	scheduler  Scheduler
	dispatcher Dispatcher
	options    Options

	schemas  map[string]*jsonschema.Schema
	handlers map[string]handlerFunc
	now      func() time.Time
}

func NewService(deps Deps, options Options) (*Service, error) {
	schemas, err := compileSchemas(definitions)
	if err != nil {
		return nil, err
	}
	if options.DaysRequested <= 0 {
		options.DaysRequested = 90
	}

	s := &Service{
		provider:   deps.Provider,
		store:      deps.Store,
		cache:      deps.Cache,
		syncer:     deps.Syncer,
		scheduler:  deps.Scheduler,
		dispatcher: deps.Dispatcher,
		options:    options,
		schemas:    schemas,
		now:        time.Now,
	}
	s.handlers = map[string]handlerFunc{
		CreateLinkToken:          s.createLinkToken,
		ExchangePublicToken:      s.exchangePublicToken,
		GetAccounts:              s.getAccounts,
		GetBalance:               s.getBalance,
		GetAuth:                  s.getAuth,
		SyncTransactions:         s.syncTransactions,
		GetTransactions:          s.getTransactions,
		GetRecurringTransactions: s.getRecurringTransactions,
		SetRefreshSchedule:       s.setRefreshSchedule,
		ProcessWebhook:           s.processWebhook,
	}
	return s, nil
}

// Tools lists the tools this server advertises.
func (s *Service) Tools() []Tool {
	tools := make([]Tool, 0, len(definitions))
	for _, tool := range definitions {
		if tool.transactions && !s.options.EnableTransactions {
			continue
		}
		tools = append(tools, tool)
	}
	return tools
}

func (s *Service) checkEnabled(name string) error {
	for _, tool := range definitions {
		if tool.Name != name {
			continue
		}
		if tool.transactions && !s.options.EnableTransactions {
			return fmt.Errorf("tool %s unavailable: %w", name, ErrTransactionsDisabled)
		}
		return nil
	}
	return fmt.Errorf("unknown tool: %s", name)
}

// Call validates the arguments against the tool's schema and runs it. Every
// failure is reported in the envelope.
func (s *Service) Call(ctx context.Context, name string, args json.RawMessage) Envelope {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	env, err := s.call(ctx, name, args)
	metrics.ToolCalls.WithLabelValues(name, metrics.Outcome(err)).Inc()
	if err != nil {
		log.Printf("ERROR: Tool %s failed: %v", name, err)
		return failure(err)
	}
	env["success"] = true
	return env
}

func (s *Service) call(ctx context.Context, name string, args json.RawMessage) (Envelope, error) {
	if err := s.checkEnabled(name); err != nil {
		return nil, err
	}
	if err := validateArgs(s.schemas[name], args); err != nil {
		return nil, err
	}
	return s.handlers[name](ctx, args)
}

func (s *Service) linkedItem(ctx context.Context, userID string) (*models.PlaidItem, error) {
	item, err := s.store.GetItem(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return item, nil
}
