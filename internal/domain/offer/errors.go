package offer

import "errors"

// ---------------------------------------------------------------------------
// Domain errors
// ---------------------------------------------------------------------------

var (
	// ErrOfferNotFound is returned when a local offer id is unknown
	ErrOfferNotFound = errors.New("offer: offer not found")
	// ErrProductNotFound is returned when a local product id is unknown
	ErrProductNotFound = errors.New("offer: product not found")
	// ErrInvalidExternalID is returned when an offer is created without an external id
	ErrInvalidExternalID = errors.New("offer: invalid external offer id")
	// ErrInvalidQuantity is returned for negative stock quantities
	ErrInvalidQuantity = errors.New("offer: stock quantity must not be negative")
	// ErrEmptyPatch is returned when an update carries no changes
	ErrEmptyPatch = errors.New("offer: patch contains no changes")
	// ErrMalformedPayload is returned when a manually supplied payload is not valid JSON
	ErrMalformedPayload = errors.New("offer: malformed payload")
	// ErrInvalidSKU is returned when a product SKU normalizes to nothing
	ErrInvalidSKU = errors.New("offer: invalid SKU")
	// ErrEmptyMigration is returned when a migration run has no records
	ErrEmptyMigration = errors.New("offer: migration has no records")
	// ErrArtifactExists is returned when a write-once artifact is written twice
	ErrArtifactExists = errors.New("offer: artifact already exists")
)

// ---------------------------------------------------------------------------
// Marketplace errors
// ---------------------------------------------------------------------------

var (
	// ErrOAuthRequired means the user must re-authorize the application
	ErrOAuthRequired = errors.New("offer: marketplace authorization required")
	// ErrUnauthorized is a 401/403 answer from the marketplace
	ErrUnauthorized = errors.New("offer: marketplace rejected credentials")
	// ErrRemoteValidation is a 400/422 answer from the marketplace
	ErrRemoteValidation = errors.New("offer: marketplace rejected offer data")
	// ErrRemoteNotFound is a 404 answer from the marketplace
	ErrRemoteNotFound = errors.New("offer: offer not found on marketplace")
	// ErrRateLimited is a 429 answer from the marketplace
	ErrRateLimited = errors.New("offer: marketplace rate limit exceeded")
	// ErrRemoteUnavailable is a 5xx answer from the marketplace
	ErrRemoteUnavailable = errors.New("offer: marketplace unavailable")
	// ErrTimeout is a client side timeout talking to the marketplace
	ErrTimeout = errors.New("offer: marketplace request timed out")
)

// IsAuthError reports whether err is an authorization failure that a token refresh may fix.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsTimeout reports whether err is a timeout and therefore retryable in the background path.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsRemoteValidation reports whether the marketplace rejected the submitted data.
func IsRemoteValidation(err error) bool {
	return errors.Is(err, ErrRemoteValidation)
}

// IsTransient reports whether err is a temporary outage rather than a data or auth problem.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRemoteUnavailable) ||
		errors.Is(err, ErrRateLimited)
}
