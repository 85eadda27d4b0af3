package progress

import "go.uber.org/zap"

// LogHandler writes every event to logger; terminal failures at error level
func LogHandler(logger *zap.Logger) Handler {
	return func(e Event) {
		fields := []zap.Field{
			zap.String("run_id", e.RunID),
			zap.String("kind", string(e.Kind)),
			zap.String("stage", e.Stage),
			zap.Int("current", e.Current),
			zap.Int("total", e.Total),
		}
		if e.Item != "" {
			fields = append(fields, zap.String("item", e.Item))
		}
		switch {
		case e.Stage == StageFailed:
			logger.Error("run failed", append(fields, zap.String("error", e.Error))...)
		case e.Terminal():
			logger.Info("run finished", fields...)
		default:
			logger.Debug("progress", fields...)
		}
	}
}
