package worker

import (
	"context"

	"github.com/spec-kit/servicedesk/internal/service"
)

// Start registers notification handlers and runs the breach monitor in the
// background. The returned channel closes once the monitor has stopped after
// ctx is cancelled.
func Start(ctx context.Context, notifications *service.NotificationService, monitor *BreachMonitor) <-chan struct{} {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	done := make(chan struct{})
	if monitor == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		monitor.Run(ctx)
	}()
	return done
}
