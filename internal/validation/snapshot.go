package validation

import (
	"time"

	"github.com/brokerledger/reconciliation-backend/internal/api/request"
)

// ValidateGenerateSnapshot validates a snapshot generation request. Date is
// optional (defaults to today) but must be YYYY-MM-DD when present.
func ValidateGenerateSnapshot(req request.GenerateSnapshotRequest) error {
	if err := ValidateUUID(req.UserID); err != nil {
		return err
	}
	if req.Date != "" {
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			return &Error{Fields: map[string]string{"date": err.Error()}}
		}
	}
	return nil
}

// ValidateDateRange checks that both bounds parse and start does not follow end.
func ValidateDateRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		return time.Time{}, time.Time{}, &Error{Fields: map[string]string{"start": err.Error()}}
	}
	endDate, err := time.Parse("2006-01-02", end)
	if err != nil {
		return time.Time{}, time.Time{}, &Error{Fields: map[string]string{"end": err.Error()}}
	}
	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return startDate, endDate, nil
}
