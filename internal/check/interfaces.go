package check

import (
	"context"

	"github.com/nmslite/check-jenkins-queue/internal/models"
)

// LoadFetcher retrieves the current load metrics from the monitored server
type LoadFetcher interface {
	FetchLoad(ctx context.Context) (models.Metrics, error)
}
