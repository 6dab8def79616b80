// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TransactionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paybot_transactions_recorded_total",
			Help: "Payment notifications parsed and stored",
		},
		[]string{"currency"},
	)
	MessagesIgnored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paybot_messages_ignored_total",
			Help: "Chat messages that did not match a payment notification",
		},
	)
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paybot_store_errors_total",
			Help: "Failed backend operations",
		},
		[]string{"operation"},
	)
	Summaries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paybot_summaries_total",
			Help: "Period summaries answered",
		},
		[]string{"source"},
	)
	Mirrored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paybot_mirror_rows_total",
			Help: "Backup sheet mirror attempts by result",
		},
		[]string{"result"},
	)
	Restored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paybot_restored_rows_total",
			Help: "Rows imported from the backup sheet",
		},
	)
)

func init() {
	prometheus.MustRegister(TransactionsRecorded)
	prometheus.MustRegister(MessagesIgnored)
	prometheus.MustRegister(StoreErrors)
	prometheus.MustRegister(Summaries)
	prometheus.MustRegister(Mirrored)
	prometheus.MustRegister(Restored)
}
