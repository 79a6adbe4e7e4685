// Package logger provides the structured logging interface shared by every
// Kolibri runtime component (journal, sandbox, graph, orchestrator, ...).
//
// # Log Levels
//
// Supported log levels in order of severity: DEBUG, INFO, WARN, ERROR.
//
// # Structured Logging
//
//	log.Info("skill executed", "skill", name, "status", status)
//
// # Contextual Logging
//
// Create child loggers with persistent fields via With/WithField/WithFields;
// the orchestrator logs session start and end through a child logger that
// carries the session id. The subsystems it constructs do not receive a
// logger.
//
// # Configuration
//
// GetLogLevel returns KOLIBRI_LOG_LEVEL (INFO when unset). Neither
// constructor reads it; the minimum level is set with SetLevel.
package logger
