package recovery

import "expvar"

var (
	persisted        = expvar.NewInt("recovery_persisted")
	persistFailures  = expvar.NewInt("recovery_persist_failures")
	restored         = expvar.NewInt("recovery_restored")
	restoreFailures  = expvar.NewInt("recovery_restore_failures")
	invalidSnapshots = expvar.NewInt("recovery_invalid_snapshots")
)
