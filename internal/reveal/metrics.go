package reveal

import "expvar"

var (
	schedulesStarted   = expvar.NewInt("reveal_schedules_started")
	schedulesCancelled = expvar.NewInt("reveal_schedules_cancelled")
	schedulesAborted   = expvar.NewInt("reveal_schedules_aborted")
	revealsPublished   = expvar.NewInt("reveal_streets_published")
	runoutsFinalized   = expvar.NewInt("reveal_runouts_finalized")
)
