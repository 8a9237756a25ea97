package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Venue gateway
	CodeVenueConnectionFailed:  "Failed to connect to venue",
	CodeVenueStreamError:       "Venue stream error",
	CodeVenueThrottled:         "Venue throttled the request",
	CodeVenueTimeout:           "Venue request timed out",
	CodeVenueUnauthorized:      "Venue rejected credentials",
	CodeVenueUnknownInstrument: "Venue does not support instrument",
	CodeOrderbookStale:         "Order book snapshot exceeded staleness threshold",
	CodeOrderbookFetchFailed:   "Failed to fetch order book",
	CodeOrderRejected:          "Venue rejected order",
	CodePartialFillRejected:    "Buy fill below partial-fill threshold, sell withheld",
	CodeBalanceFetchFailed:     "Failed to fetch balance",
	CodeBalanceRace:            "Balance insufficient at submission time",
	CodeFeeFetchFailed:         "Failed to fetch trading fees",

	// WebSocket transport
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Circuit breaker
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",

	// Arbitrage strategy engine
	CodePriceCalculationFailed: "Price calculation failed",
	CodeSpreadCalculationError: "Spread calculation error",
	CodeInsufficientLiquidity:  "Insufficient liquidity for trade size",
	CodeInvalidTradeSize:       "Invalid trade size",
	CodeOpportunityStale:       "Opportunity exceeded max age",
	CodeOpportunitySkewed:      "Opportunity timestamp is in the future",
	CodeTradeKeyLocked:         "Trade key already has an active attempt",
	CodePriceVarianceExceeded:  "Price moved beyond tolerance since detection",
	CodeSlippageExceeded:       "Estimated slippage exceeds configured maximum",
	CodeInvariantViolation:     "Invariant violation",

	// Ledger
	CodeLedgerWriteFailed:     "Failed to persist ledger state",
	CodeLedgerCorrupt:         "Ledger file is corrupt or unreadable",
	CodeLedgerVersionSkew:     "Ledger file version mismatch",
	CodeTradeNotFound:         "Trade not found in ledger",
	CodeOrphanNotAcknowledged: "Orphaned trade requires operator acknowledgement",
}
