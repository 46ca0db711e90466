package models

import "strings"

// UnsetThreshold is the command-line value meaning "no threshold configured"
const UnsetThreshold = -1

// Severity is the status reported to the monitoring supervisor
type Severity int

const (
	OK Severity = iota
	Warning
	Critical
	Unknown
)

// String returns the upper-case label used as the status line prefix
func (s Severity) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExitCode maps the severity to the plugin exit status (0..3)
func (s Severity) ExitCode() int {
	switch s {
	case OK, Warning, Critical:
		return int(s)
	default:
		return int(Unknown)
	}
}

// Metrics holds the values extracted from the overall load endpoint.
// Jenkins reports averaged series, so values may be fractional.
type Metrics struct {
	QueueLength   float64
	BusyExecutors float64
}

// Thresholds holds the configured bounds; nil means unset
type Thresholds struct {
	Warning  *int
	Critical *int
}

// CheckResult is the terminal outcome of one invocation
type CheckResult struct {
	Severity Severity
	Message  string
	Perfdata string // empty when performance data is disabled
}

// ExitCode returns the process exit status for the result
func (r CheckResult) ExitCode() int {
	return r.Severity.ExitCode()
}

// String renders the status line without the trailing newline
func (r CheckResult) String() string {
	if r.Perfdata == "" {
		return r.Message
	}
	var b strings.Builder
	b.Grow(len(r.Message) + len(r.Perfdata) + 1)
	b.WriteString(r.Message)
	b.WriteByte('|')
	b.WriteString(r.Perfdata)
	return b.String()
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// ThresholdFromSentinel returns nil for UnsetThreshold, otherwise a pointer to v
func ThresholdFromSentinel(v int) *int {
	if v == UnsetThreshold {
		return nil
	}
	return &v
}
