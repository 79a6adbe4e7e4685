package logger

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	SetLevel(level string)
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	With(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// LogLevel represents the logging level
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// The orchestrator's journal, SLO tracker, and sandbox all key their
// structured payloads off this small vocabulary (session_id, stage, skill,
// status, event); these constructors keep runtime log lines using the same
// keys instead of each call site inventing its own.

// SessionField tags a log line with the session id StartSession/EndSession
// journal.
func SessionField(id string) Field { return Field{Key: "session_id", Value: id} }

// StageField tags a log line with the pipeline stage name (one of the
// twelve stages Process drives a request through).
func StageField(stage string) Field { return Field{Key: "stage", Value: stage} }

// SkillField tags a log line with the skill a sandbox invocation or plan
// step refers to.
func SkillField(name string) Field { return Field{Key: "skill", Value: name} }

// StatusField tags a log line with an execution outcome (ok, error,
// policy_blocked, quota_blocked, missing, skipped).
func StatusField(status string) Field { return Field{Key: "status", Value: status} }

// EventField tags a log line with the journal event name it mirrors, so a
// log line and its corresponding journal entry can be correlated by event
// name alone.
func EventField(event string) Field { return Field{Key: "event", Value: event} }

// DurationMsField tags a log line with a stage or invocation's wall-clock
// duration in milliseconds, matching the unit the SLO tracker observes in.
func DurationMsField(ms float64) Field { return Field{Key: "duration_ms", Value: ms} }
