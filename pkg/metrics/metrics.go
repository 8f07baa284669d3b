package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Migration counters, labeled by outcome so one run's report can be
// cross-checked against the scrape.
var (
	RowsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_migration_rows_scanned_total",
		Help: "Source rows read by the migration engine",
	})

	RowsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_migration_rows_inserted_total",
		Help: "Rows committed to the target store",
	})

	RowsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_migration_rows_skipped_total",
		Help: "Rows skipped during migration, by reason",
	}, []string{"reason"})

	BatchesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_migration_batches_committed_total",
		Help: "Batches committed as a single transaction",
	})

	StoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_store_operations_total",
		Help: "Quote store operations, by operation and result",
	}, []string{"operation", "result"})
)

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
