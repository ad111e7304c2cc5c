package scheduler

import (
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(RegisterSchedulerLifecycle),
)

// RegisterSchedulerLifecycle starts the cron after all tasks are registered
func RegisterSchedulerLifecycle(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.StartStopHook(s.Start, s.Stop))
}
