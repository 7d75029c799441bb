package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaid_sync_runs_total",
		Help: "Transaction sync runs by trigger and outcome.",
	}, []string{"trigger", "outcome"})

	SyncPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plaid_sync_pages_total",
		Help: "Delta-sync pages merged into the ledger.",
	})

	ScheduledFirings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaid_refresh_firings_total",
		Help: "Scheduled refresh firings by outcome.",
	}, []string{"outcome"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaid_webhook_events_total",
		Help: "Inbound webhook events by webhook type and outcome.",
	}, []string{"webhook_type", "outcome"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_tool_calls_total",
		Help: "Tool invocations by tool name and outcome.",
	}, []string{"tool", "outcome"})
)

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
