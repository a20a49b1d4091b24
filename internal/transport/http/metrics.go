package httptransport

import "expvar"

var (
	metricSessionSelectTotal  = expvar.NewInt("session_select_total")
	metricSessionSelectErrors = expvar.NewInt("session_select_errors_total")

	metricMutationTotal       = expvar.NewInt("mutation_total")
	metricMutationErrors      = expvar.NewInt("mutation_errors_total")
	metricMutationRateLimited = expvar.NewInt("mutation_rate_limited_total")

	metricSSEConnectionsTotal  = expvar.NewInt("sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("sse_connections_active")
)
