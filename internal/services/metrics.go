package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// vendorSaves counts successful vendor saves by type and action.
	vendorSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_vendor_saves_total",
			Help: "Vendor records saved, by type and action (added/updated).",
		},
		[]string{"type", "action"},
	)

	// rejections counts writes refused before reaching storage.
	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_rejections_total",
			Help: "Writes rejected by validation, by collection and reason.",
		},
		[]string{"collection", "reason"},
	)

	// importRows counts imported rows by type and outcome.
	importRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_import_rows_total",
			Help: "Spreadsheet rows imported, by type and outcome (written/skipped/failed).",
		},
		[]string{"type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(vendorSaves, rejections, importRows)
}
