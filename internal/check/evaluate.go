// Package check turns load metrics into a plugin status line and exit code.
package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nmslite/check-jenkins-queue/internal/config"
	"github.com/nmslite/check-jenkins-queue/internal/jenkins"
	"github.com/nmslite/check-jenkins-queue/internal/models"
)

// Run fetches the metrics once and evaluates them. Any fetch or parse
// failure yields UNKNOWN without perfdata.
func Run(ctx context.Context, fetcher LoadFetcher, t models.Thresholds, perfdata bool) models.CheckResult {
	metrics, err := fetcher.FetchLoad(ctx)
	if err != nil {
		return Unknown(err)
	}
	return Evaluate(metrics, t, perfdata)
}

// Evaluate classifies the queue length. Critical is checked before warning
// and a breach requires the value to be strictly greater than the threshold.
func Evaluate(m models.Metrics, t models.Thresholds, perfdata bool) models.CheckResult {
	queue := formatValue(m.QueueLength)

	var result models.CheckResult
	switch {
	case breached(m.QueueLength, t.Critical):
		result = models.CheckResult{
			Severity: models.Critical,
			Message:  fmt.Sprintf("CRITICAL: queue length %s exeeds critical threshold: %d", queue, *t.Critical),
		}
	case breached(m.QueueLength, t.Warning):
		result = models.CheckResult{
			Severity: models.Warning,
			Message:  fmt.Sprintf("WARNING: queue length %s exeeds warning threshold: %d", queue, *t.Warning),
		}
	default:
		result = models.CheckResult{
			Severity: models.OK,
			Message:  "OK: queue length: " + queue,
		}
	}

	if perfdata {
		result.Perfdata = Perfdata(m, t)
	}
	return result
}

// Perfdata renders "queue=<q>;<warn>;<crit> busy_executors=<b>".
// Unset thresholds leave their field empty.
func Perfdata(m models.Metrics, t models.Thresholds) string {
	return fmt.Sprintf("queue=%s;%s;%s busy_executors=%s",
		formatValue(m.QueueLength),
		formatThreshold(t.Warning),
		formatThreshold(t.Critical),
		formatValue(m.BusyExecutors),
	)
}

// Unknown maps an error from any stage of the run to an UNKNOWN result
func Unknown(err error) models.CheckResult {
	var (
		fetchErr *jenkins.FetchError
		parseErr *jenkins.ParseError
		usageErr *config.UsageError
	)
	var msg string
	switch {
	case errors.As(err, &fetchErr):
		msg = fetchErr.Error()
	case errors.As(err, &parseErr):
		msg = parseErr.Error()
	case errors.As(err, &usageErr):
		msg = usageErr.Reason
	default:
		msg = err.Error()
	}
	return models.CheckResult{
		Severity: models.Unknown,
		Message:  "UNKNOWN: " + msg,
	}
}

// Write prints the status line followed by a newline
func Write(w io.Writer, r models.CheckResult) error {
	_, err := fmt.Fprintln(w, r.String())
	return err
}

// isSet treats a pointer to the -1 sentinel the same as nil
func isSet(threshold *int) bool {
	return threshold != nil && *threshold != models.UnsetThreshold
}

func breached(value float64, threshold *int) bool {
	return isSet(threshold) && value > float64(*threshold)
}

func formatThreshold(threshold *int) string {
	if !isSet(threshold) {
		return ""
	}
	return strconv.Itoa(*threshold)
}

// formatValue prints integral values without a fraction ("5", not "5.0")
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
