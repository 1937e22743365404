package tablegateway

import "expvar"

var (
	metricTablesCreated     = expvar.NewInt("tables_created_total")
	metricTablesRestored    = expvar.NewInt("tables_restored_total")
	metricTablesEvicted     = expvar.NewInt("tables_evicted_total")
	metricHandsStarted      = expvar.NewInt("hands_started_total")
	metricHandsFinished     = expvar.NewInt("hands_finished_total")
	metricActionSubmitTotal = expvar.NewInt("action_submit_total")
	metricActionRejected    = expvar.NewInt("action_submit_rejected_total")
	metricGuardContention   = expvar.NewInt("guard_contention_total")
	metricEventsPublished   = expvar.NewInt("events_published_total")
	metricPublishFailures   = expvar.NewInt("events_publish_failures_total")
	metricSyncOverrides     = expvar.NewInt("sync_overridden_client_changes_total")

	metricSSEConnectionsTotal  = expvar.NewInt("table_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("table_sse_connections_active")
)
