// Package logger provides the structured logging interface used across tcgsync.
//
// It wraps zerolog with a small interface so components can take a Logger
// and tests can pass NewNopLogger or NewTestLogger instead.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "crawler")
//	log.InfoWithFields("Listing page processed", map[string]interface{}{
//	    "page": 2,
//	    "rows": 500,
//	})
//
// Console output is colored when no log file is configured. With a file,
// JSON lines are appended to it and a plain copy goes to stderr.
package logger
