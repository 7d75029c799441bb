package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"plaid-mcp-server/src/models"
)

func TestSumTransactions(t *testing.T) {
	totals := SumTransactions([]models.Transaction{
		{TransactionID: "t1", Amount: 0.1},
		{TransactionID: "t2", Amount: 0.2},
		{TransactionID: "t3", Amount: -1500.55},
	})

	want := Totals{Inflow: "1500.55", Outflow: "0.30", Net: "1500.25"}
	if totals != want {
		t.Errorf("totals = %+v, want %+v", totals, want)
	}
}

func TestResources(t *testing.T) {
	f := newFixture(t, true)
	f.link(t, "u1")
	f.link(t, "u2")

	resources, err := f.service.Resources(context.Background())
	if err != nil {
		t.Fatalf("Resources: %v", err)
	}
	if len(resources) != 6 || resources[0].URI != "plaid://users/u1/transactions" {
		t.Errorf("resources = %+v", resources)
	}
	if len(f.service.ResourceTemplates()) != 3 {
		t.Error("expected three resource templates")
	}

	disabled := newFixture(t, false)
	disabled.link(t, "u1")
	resources, _ = disabled.service.Resources(context.Background())
	if len(resources) != 1 || resources[0].URI != "plaid://users/u1/webhooks" {
		t.Errorf("resources with transactions disabled = %+v", resources)
	}
}

func TestReadTransactionsResource(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.link(t, "u1")
	f.store.ApplyDelta(ctx, "u1", models.TransactionDelta{Added: []models.Transaction{
		{TransactionID: "t1", Amount: 12.5, Date: "2024-05-02"},
		{TransactionID: "t2", Amount: -100, Date: "2024-05-01"},
	}})
	at := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	f.store.TouchLastRefreshed(ctx, "u1", at)

	contents, err := f.service.ReadResource(ctx, "plaid://users/u1/transactions")
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}

	var body struct {
		Count         int                  `json:"count"`
		Transactions  []models.Transaction `json:"transactions"`
		Totals        Totals               `json:"totals"`
		LastRefreshed *time.Time           `json:"last_refreshed"`
	}
	if err := json.Unmarshal([]byte(contents.Text), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || body.Transactions[0].TransactionID != "t1" {
		t.Errorf("transactions = %+v", body.Transactions)
	}
	if body.Totals.Net != "87.50" {
		t.Errorf("net = %s, want 87.50", body.Totals.Net)
	}
	if body.LastRefreshed == nil || !body.LastRefreshed.Equal(at) {
		t.Errorf("last refreshed = %v", body.LastRefreshed)
	}
}

func TestReadWebhooksAndSettingsResources(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.link(t, "u1")
	f.call(t, ProcessWebhook, `{"webhook_body":{"webhook_type":"ITEM","webhook_code":"PENDING_EXPIRATION","item_id":"item-u1"}}`)
	f.call(t, SetRefreshSchedule, `{"user_id":"u1","frequency":"daily"}`)

	contents, err := f.service.ReadResource(ctx, "plaid://users/u1/webhooks")
	if err != nil {
		t.Fatalf("ReadResource webhooks: %v", err)
	}
	var events struct {
		Count int `json:"count"`
	}
	json.Unmarshal([]byte(contents.Text), &events)
	if events.Count != 1 {
		t.Errorf("webhook count = %d, want 1", events.Count)
	}

	contents, err = f.service.ReadResource(ctx, "plaid://users/u1/refresh-settings")
	if err != nil {
		t.Fatalf("ReadResource settings: %v", err)
	}
	var settings struct {
		Active bool `json:"active"`
	}
	json.Unmarshal([]byte(contents.Text), &settings)
	if !settings.Active {
		t.Error("expected active schedule")
	}
}

func TestReadResourceErrors(t *testing.T) {
	f := newFixture(t, true)

	if _, err := f.service.ReadResource(context.Background(), "plaid://users/u1/balances"); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("error = %v, want ErrUnknownResource", err)
	}
	if _, err := f.service.ReadResource(context.Background(), "plaid://users/ghost/transactions"); err == nil {
		t.Error("expected error for unlinked user")
	}

	disabled := newFixture(t, false)
	if _, err := disabled.service.ReadResource(context.Background(), "plaid://users/u1/transactions"); !errors.Is(err, ErrTransactionsDisabled) {
		t.Errorf("error = %v, want ErrTransactionsDisabled", err)
	}
}
