package rtdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banter_rtdb_writes_total",
		Help: "Tree mutations applied (writes, merges, deletes, transactions).",
	})
	mTxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banter_rtdb_transaction_retries_total",
		Help: "Optimistic transaction attempts that lost the race and retried.",
	})
	mWatchers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "banter_rtdb_watchers",
		Help: "Live watch subscriptions.",
	})
)
