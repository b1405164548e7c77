package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsdesk/ticket-rules/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartSLAWatcher runs the overdue sweep in the background until ctx ends.
func StartSLAWatcher(ctx context.Context, watcher *SLAWatcher, logger *zap.Logger) {
	if watcher == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("sla watcher panicked", zap.Any("panic", r))
			}
		}()
		watcher.Run(ctx)
	}()
}
