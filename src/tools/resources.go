package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/shopspring/decimal"

	"plaid-mcp-server/src/db"
	"plaid-mcp-server/src/models"
)

var ErrUnknownResource = errors.New("unknown resource")

const (
	TransactionsResource    = "transactions"
	RefreshSettingsResource = "refresh-settings"
	WebhooksResource        = "webhooks"
)

type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType"`
}

type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

var resourcePattern = regexp.MustCompile(`^plaid://users/([^/]+)/(transactions|refresh-settings|webhooks)$`)

func ResourceURI(userID, kind string) string {
	return "plaid://users/" + url.PathEscape(userID) + "/" + kind
}

func (s *Service) resourceKinds() []string {
	if s.options.EnableTransactions {
		return []string{TransactionsResource, RefreshSettingsResource, WebhooksResource}
	}
	return []string{WebhooksResource}
}

func (s *Service) ResourceTemplates() []ResourceTemplate {
	descriptions := map[string]string{
		TransactionsResource:    "Synced transactions with refresh metadata and totals",
		RefreshSettingsResource: "Background refresh schedule",
		WebhooksResource:        "Received webhook events",
	}
	templates := []ResourceTemplate{}
	for _, kind := range s.resourceKinds() {
		templates = append(templates, ResourceTemplate{
			URITemplate: "plaid://users/{user_id}/" + kind,
			Name:        kind,
			Description: descriptions[kind],
			MimeType:    "application/json",
		})
	}
	return templates
}

// Resources lists the concrete resources of every linked user.
func (s *Service) Resources(ctx context.Context) ([]Resource, error) {
	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	resources := []Resource{}
	for _, userID := range userIDs {
		for _, kind := range s.resourceKinds() {
			resources = append(resources, Resource{
				URI:      ResourceURI(userID, kind),
				Name:     userID + " " + kind,
				MimeType: "application/json",
			})
		}
	}
	return resources, nil
}

func (s *Service) ReadResource(ctx context.Context, uri string) (*ResourceContents, error) {
	m := resourcePattern.FindStringSubmatch(uri)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, uri)
	}
	userID, err := url.PathUnescape(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, uri)
	}
	kind := m[2]
	if kind != WebhooksResource && !s.options.EnableTransactions {
		return nil, fmt.Errorf("resource %s unavailable: %w", uri, ErrTransactionsDisabled)
	}

	var body interface{}
	switch kind {
	case TransactionsResource:
		body, err = s.transactionsResource(ctx, userID)
	case RefreshSettingsResource:
		body, err = s.refreshSettingsResource(ctx, userID)
	case WebhooksResource:
		body, err = s.webhooksResource(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	text, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ResourceContents{URI: uri, MimeType: "application/json", Text: string(text)}, nil
}

// Totals are decimal strings. Plaid reports money leaving the account as a
// positive amount.
type Totals struct {
	Inflow  string `json:"inflow"`
	Outflow string `json:"outflow"`
	Net     string `json:"net"`
}

func SumTransactions(txns []models.Transaction) Totals {
	inflow, outflow := decimal.Zero, decimal.Zero
	for _, txn := range txns {
		amount := decimal.NewFromFloat(txn.Amount)
		if amount.IsPositive() {
			outflow = outflow.Add(amount)
		} else {
			inflow = inflow.Sub(amount)
		}
	}
	return Totals{
		Inflow:  inflow.StringFixed(2),
		Outflow: outflow.StringFixed(2),
		Net:     inflow.Sub(outflow).StringFixed(2),
	}
}

func (s *Service) refreshSetting(ctx context.Context, userID string) (*models.RefreshSetting, error) {
	setting, err := s.store.GetRefreshSetting(ctx, userID)
	if errors.Is(err, db.ErrNoSetting) {
		return nil, nil
	}
	return setting, err
}

func (s *Service) transactionsResource(ctx context.Context, userID string) (interface{}, error) {
	if _, err := s.linkedItem(ctx, userID); err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	setting, err := s.refreshSetting(ctx, userID)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"user_id":         userID,
		"transactions":    txns,
		"count":           len(txns),
		"totals":          SumTransactions(txns),
		"last_refreshed":  nil,
		"refresh_setting": setting,
	}
	if setting != nil {
		body["last_refreshed"] = setting.LastRefreshed
	}
	return body, nil
}

func (s *Service) refreshSettingsResource(ctx context.Context, userID string) (interface{}, error) {
	setting, err := s.refreshSetting(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"user_id":         userID,
		"refresh_setting": setting,
		"active":          s.scheduler.Active(userID),
	}, nil
}

func (s *Service) webhooksResource(ctx context.Context, userID string) (interface{}, error) {
	events, err := s.store.ListWebhookEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return map[string]interface{}{
		"user_id": userID,
		"events":  events,
		"count":   len(events),
	}, nil
}
