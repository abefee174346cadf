package repository

import "context"

// ProcessedEventRepository remembers which provider webhook events were
// already handled.
type ProcessedEventRepository interface {
	// Claim marks eventID as processed. It returns false, without error, when
	// the id had already been claimed and has not expired.
	Claim(ctx context.Context, eventID string) (bool, error)
}
