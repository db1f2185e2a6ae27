// Package logger provides structured logging for the harvester.
//
// It wraps zerolog behind a small Logger interface:
//   - pretty console output on stdout, optionally mirrored to a file
//   - WithField / WithFields / WithError for contextual loggers
//   - a global logger initialised from config.LoggingConfig
//   - TestLogger and NewNopLogger for tests
//
// Basic Usage:
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("file", name).Info("Download completed")
//
// Components take a Logger in their constructors and fall back to
// GetLogger when given nil.
package logger
