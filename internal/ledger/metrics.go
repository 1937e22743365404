package ledger

import "expvar"

var violations = expvar.NewInt("ledger_conservation_violations")
