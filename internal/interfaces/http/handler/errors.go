package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/allegro"
	"github.com/speakASAP/allegro-service/internal/interfaces/http/dto"
)

// errorMapping is the API answer for a class of service errors
type errorMapping struct {
	status  int
	code    string
	message string
	remote  string
}

// errorRule maps every error matching target
type errorRule struct {
	target  error
	status  int
	code    string
	message string
}

// errorRules is checked in order; the first match wins
var errorRules = []errorRule{
	{offer.ErrOfferNotFound, http.StatusNotFound, dto.ErrCodeNotFound, "Offer not found"},
	{offer.ErrProductNotFound, http.StatusNotFound, dto.ErrCodeNotFound, "Product not found"},
	{offer.ErrOAuthRequired, http.StatusUnauthorized, dto.ErrCodeOAuthRequired, "Marketplace authorization required, authorize the application again"},
	{allegro.ErrInvalidState, http.StatusBadRequest, dto.ErrCodeInvalidState, "Authorization state is invalid or expired"},
	{offer.ErrMalformedPayload, http.StatusBadRequest, dto.ErrCodeInvalidJSON, ""},
	{offer.ErrEmptyPatch, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Update contains no changes"},
	{offer.ErrInvalidQuantity, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Stock quantity must not be negative"},
	{offer.ErrInvalidExternalID, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Offer id is required"},
	{offer.ErrEmptyMigration, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Migration has no records"},
	{offer.ErrArtifactExists, http.StatusConflict, dto.ErrCodeAlreadyExists, "Artifact already exists"},
	{offer.ErrRemoteValidation, http.StatusUnprocessableEntity, dto.ErrCodeRemoteValidation, "Marketplace rejected the offer data"},
	{offer.ErrRemoteNotFound, http.StatusNotFound, dto.ErrCodeRemoteNotFound, "Offer no longer exists on the marketplace"},
	{offer.ErrTimeout, http.StatusGatewayTimeout, dto.ErrCodeRemoteTimeout, "Marketplace did not answer in time"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, dto.ErrCodeRemoteTimeout, "Request timed out"},
	{offer.ErrRateLimited, http.StatusTooManyRequests, dto.ErrCodeRateLimited, "Marketplace rate limit exceeded, try again later"},
	{offer.ErrRemoteUnavailable, http.StatusBadGateway, dto.ErrCodeRemoteUnavailable, "Marketplace is temporarily unavailable"},
	// application credentials rejected; the seller cannot fix this by re-authorizing
	{offer.ErrUnauthorized, http.StatusBadGateway, dto.ErrCodeRemoteUnavailable, "Marketplace rejected the application credentials"},
}

// classifyError maps a service error to its API answer. Unknown errors are
// internal errors and their text is not exposed.
func classifyError(err error) errorMapping {
	for _, r := range errorRules {
		if !errors.Is(err, r.target) {
			continue
		}
		m := errorMapping{status: r.status, code: r.code, message: r.message}
		if m.message == "" {
			m.message = err.Error()
		}
		if r.target == offer.ErrRemoteValidation {
			m.remote, _ = allegro.RemoteBody(err)
		}
		return m
	}
	return errorMapping{
		status:  http.StatusInternalServerError,
		code:    dto.ErrCodeInternal,
		message: "An unexpected error occurred",
	}
}
