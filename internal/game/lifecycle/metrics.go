package lifecycle

import "expvar"

var transitionsRejected = expvar.NewInt("lifecycle_transitions_rejected")
