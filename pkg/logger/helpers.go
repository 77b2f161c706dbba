package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogCrawlPage logs one processed listing page
func LogCrawlPage(l Logger, page, rows, matched int, duration time.Duration) {
	l.InfoWithFields("Listing page processed", map[string]interface{}{
		"page":     page,
		"rows":     rows,
		"matched":  matched,
		"duration": duration,
	})
}

// LogSyncResult logs the outcome of syncing one order
func LogSyncResult(l Logger, orderID, result string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"order_id": orderID,
		"result":   result,
	})

	if err != nil {
		entry.WithError(err).Error("Order sync failed")
		return
	}
	if result == "written" || result == "overwritten_different" {
		entry.Info("Order stored")
	} else {
		entry.Debug("Order skipped")
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(l Logger, endpoint string, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"wait":     wait,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(config) > 0 {
		entry = entry.WithFields(config)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs run metrics
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	l.InfoWithFields("Run metrics", fields)
}

// OrDefault returns l, or the global logger when l is nil
func OrDefault(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
