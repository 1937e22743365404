package httptransport

import "expvar"

var (
	metricHealthChecks   = expvar.NewInt("http_health_checks_total")
	metricHealthFailures = expvar.NewInt("http_health_failures_total")
	metricAdminRejected  = expvar.NewInt("http_admin_unauthorized_total")
)
