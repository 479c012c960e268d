package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Contract errors
	CodeInsufficientPayment Code = "INSUFFICIENT_PAYMENT"
	CodePaymentOverflow     Code = "PAYMENT_OVERFLOW"
	CodeInvalidDuration     Code = "INVALID_DURATION"
	CodeInvalidFrequency    Code = "INVALID_FREQUENCY"
	CodeNotProvider         Code = "NOT_PROVIDER"
	CodeGrantExpired        Code = "GRANT_EXPIRED"
	CodeOnlyOwner           Code = "ONLY_OWNER"
	CodeWithdrawFailed      Code = "WITHDRAW_FAILED"
	CodeNotDeployed         Code = "CONTRACT_NOT_DEPLOYED"
	CodeAlreadyDeployed     Code = "CONTRACT_ALREADY_DEPLOYED"

	// Chain errors
	CodeBadSignature      Code = "BAD_SIGNATURE"
	CodeNonceConflict     Code = "NONCE_CONFLICT"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeUnknownCall       Code = "UNKNOWN_CALL"

	// Stream errors
	CodeSchemaNotFound  Code = "SCHEMA_NOT_FOUND"
	CodeSchemaMismatch  Code = "SCHEMA_MISMATCH"
	CodeRecordNotFound  Code = "RECORD_NOT_FOUND"
	CodeRecordMalformed Code = "RECORD_MALFORMED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes for the node API.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeInsufficientPayment,
		CodePaymentOverflow,
		CodeInvalidDuration,
		CodeInvalidFrequency,
		CodeBadSignature,
		CodeRecordMalformed,
		CodeUnknownCall:
		return http.StatusBadRequest

	// Conflict - state doesn't allow the operation
	case CodeNotProvider,
		CodeGrantExpired,
		CodeOnlyOwner,
		CodeWithdrawFailed,
		CodeNonceConflict,
		CodeInsufficientFunds,
		CodeAlreadyDeployed,
		CodeSchemaMismatch:
		return http.StatusConflict

	// Not found - resource doesn't exist
	case CodeNotFound,
		CodeNotDeployed,
		CodeSchemaNotFound,
		CodeRecordNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
