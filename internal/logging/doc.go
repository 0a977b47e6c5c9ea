// Package logging provides structured logging for the r2k tools.
//
// This package wraps a package-global zap logger with convenience functions
// for the logging patterns used across the protocol engine, the reader
// connection and the event server.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Frame hex dumps, tag reads, dropped frames
//   - Info: Connections, reader configuration changes, server lifecycle
//   - Warn: Timeouts, stale replies, slow event consumers
//   - Error: Transport failures
//
// # Silent By Default
//
// CLI commands print their results on stdout. Logging is therefore off unless
// a level is requested with --log-level or the R2K_LOG_LEVEL environment
// variable, and log output always goes to stderr.
//
//	if err := logging.Initialize(flagLogLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Specialized Logging
//
//	logging.LogConnection("/dev/ttyUSB0", "opened")
//	logging.LogFrame("tx", "SetWorkAntenna", raw)
//	logging.LogTagEvent("E2003412B802011234567890", 1, -64, 915.5)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once Initialize has
// returned. Initialize and SetLogger themselves are meant for process start
// and test setup.
package logging
