package jenkins

import (
	"encoding/json"
	"errors"

	"github.com/nmslite/check-jenkins-queue/internal/models"
)

// LoadPath is the overall load statistics endpoint, relative to the base URL
const LoadPath = "/overallLoad/api/json"

// LoadTree restricts the response to the two series the check reads
const LoadTree = "busyExecutors[min[latest]],queueLength[min[latest]]"

// loadStatistics mirrors the tree-filtered overallLoad document:
//
//	{"busyExecutors":{"min":{"latest":2.0}},"queueLength":{"min":{"latest":5.0}}}
type loadStatistics struct {
	BusyExecutors *timeSeries `json:"busyExecutors"`
	QueueLength   *timeSeries `json:"queueLength"`
}

// timeSeries holds the minute-resolution series of one statistic
type timeSeries struct {
	Min *struct {
		Latest *float64 `json:"latest"`
	} `json:"min"`
}

// latest returns the most recent sample or an error naming the missing field
func (ts *timeSeries) latest(name string) (float64, string, error) {
	field := name + ".min.latest"
	if ts == nil || ts.Min == nil || ts.Min.Latest == nil {
		return 0, field, errMissing
	}
	if *ts.Min.Latest < 0 {
		return 0, field, errNegative
	}
	return *ts.Min.Latest, "", nil
}

// decodeLoad parses the load document. Absent, null or non-numeric fields
// are errors, never zero.
func decodeLoad(url string, body []byte) (models.Metrics, error) {
	var stats loadStatistics
	if err := json.Unmarshal(body, &stats); err != nil {
		perr := &ParseError{URL: url, Err: err}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			perr.Field = typeErr.Field
		}
		return models.Metrics{}, perr
	}

	queueLength, field, err := stats.QueueLength.latest("queueLength")
	if err != nil {
		return models.Metrics{}, &ParseError{URL: url, Field: field, Err: err}
	}

	busyExecutors, field, err := stats.BusyExecutors.latest("busyExecutors")
	if err != nil {
		return models.Metrics{}, &ParseError{URL: url, Field: field, Err: err}
	}

	return models.Metrics{QueueLength: queueLength, BusyExecutors: busyExecutors}, nil
}
