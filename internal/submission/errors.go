package submission

import (
	"net/http"

	"ezchain/internal/txengine"
)

// apiError is the finite, tagged error shape every route returns on
// failure: a lowercase snake_case code from the closed set spec.md §6
// defines, a human-readable message, and the HTTP status it maps to.
type apiError struct {
	Code    string
	Message string
	Status  int
}

func (e *apiError) Error() string { return e.Message }

func newAPIError(status int, code, message string) *apiError {
	return &apiError{Status: status, Code: code, Message: message}
}

func errUnauthorized() *apiError {
	return newAPIError(http.StatusUnauthorized, "unauthorized", "missing or invalid X-EZ-Token")
}

func errPayloadTooLarge() *apiError {
	return newAPIError(http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds max_payload_bytes")
}

func errInvalidContentLength() *apiError {
	return newAPIError(http.StatusBadRequest, "invalid_content_length", "Content-Length header is required")
}

func errInvalidRequest(detail string) *apiError {
	msg := "request body is not valid JSON"
	if detail != "" {
		msg = detail
	}
	return newAPIError(http.StatusBadRequest, "invalid_request", msg)
}

func errPasswordRequired() *apiError {
	return newAPIError(http.StatusBadRequest, "password_required", "X-EZ-Password header is required")
}

func errWalletNotFound() *apiError {
	return newAPIError(http.StatusNotFound, "wallet_not_found", "no wallet has been created")
}

func errNonceRequired() *apiError {
	return newAPIError(http.StatusBadRequest, "nonce_required", "X-EZ-Nonce header is required")
}

func errInvalidNonceFormat() *apiError {
	return newAPIError(http.StatusBadRequest, "invalid_nonce_format", "X-EZ-Nonce must be printable ASCII of bounded length")
}

func errInvalidClientTxID() *apiError {
	return newAPIError(http.StatusBadRequest, "invalid_client_tx_id", "client_tx_id must be bounded ASCII with no spaces")
}

func errReplayDetected() *apiError {
	return newAPIError(http.StatusConflict, "replay_detected", "nonce already used within its TTL")
}

func errDuplicateTransaction() *apiError {
	return newAPIError(http.StatusConflict, "duplicate_transaction", "client_tx_id already submitted for this sender")
}

func errAmountMustBePositive() *apiError {
	return newAPIError(http.StatusBadRequest, "amount_must_be_positive", "amount must be greater than zero")
}

func errAmountExceedsLimit() *apiError {
	return newAPIError(http.StatusBadRequest, "amount_exceeds_limit", "amount exceeds the configured limit")
}

func errRecipientRequired() *apiError {
	return newAPIError(http.StatusBadRequest, "recipient_required", "recipient is required")
}

func errInsufficientBalance() *apiError {
	return newAPIError(http.StatusBadRequest, "insufficient_balance", "sender balance is insufficient")
}

func errSendFailed(detail string) *apiError {
	msg := "transaction submission failed"
	if detail != "" {
		msg = detail
	}
	return newAPIError(http.StatusInternalServerError, "send_failed", msg)
}

func errBalanceFailed(detail string) *apiError {
	msg := "balance lookup failed"
	if detail != "" {
		msg = detail
	}
	return newAPIError(http.StatusInternalServerError, "balance_failed", msg)
}

func errInternal(detail string) *apiError {
	msg := "internal error"
	if detail != "" {
		msg = detail
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", msg)
}

func errNotFound() *apiError {
	return newAPIError(http.StatusNotFound, "not_found", "route not found")
}

// classifyTxEngineError maps a Tx Engine error to its classified apiError,
// falling back to send_failed for anything unclassified.
func classifyTxEngineError(err error) *apiError {
	switch err {
	case txengine.ErrInsufficientBalance:
		return errInsufficientBalance()
	case txengine.ErrAmountExceedsLimit:
		return errAmountExceedsLimit()
	case txengine.ErrRecipientRequired:
		return errRecipientRequired()
	case txengine.ErrAmountMustBePositive:
		return errAmountMustBePositive()
	default:
		return errSendFailed(err.Error())
	}
}
