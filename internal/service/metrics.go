package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_sessions_total",
			Help: "Checkout session requests by resolved province and result",
		},
		[]string{"province", "result"},
	)

	taxCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_tax_collected_minor_units_total",
			Help: "Sales tax added to created checkout sessions, in minor currency units",
		},
		[]string{"province"},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_webhook_events_total",
			Help: "Webhook deliveries by event type and outcome",
		},
		[]string{"type", "result"},
	)

	searchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_search_queries_total",
			Help: "Catalog searches by outcome (empty, no_results, found)",
		},
		[]string{"result"},
	)
)

// Result label values.
const (
	resultCreated  = "created"
	resultInvalid  = "invalid"
	resultFailed   = "failed"
	resultRejected = "rejected"
	resultAborted  = "aborted"

	resultUnverified        = "unverified"
	resultSignatureFailed   = "signature_failed"
	resultDuplicate         = "duplicate"
	resultIgnored           = "ignored"
	resultFulfilled         = "fulfilled"
	resultFulfillmentFailed = "fulfillment_failed"
	resultDecodeFailed      = "decode_failed"

	resultEmpty     = "empty"
	resultNoResults = "no_results"
	resultFound     = "found"
)
