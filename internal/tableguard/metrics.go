package tableguard

import "expvar"

var (
	contention         = expvar.NewInt("tableguard_contention")
	duplicatesRejected = expvar.NewInt("tableguard_duplicate_advances")
)
