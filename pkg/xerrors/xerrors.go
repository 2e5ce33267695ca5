// Package xerrors defines the sentinel error kinds shared across the
// engine's transport, broker-client, and reconciliation layers. Call sites
// wrap a sentinel with fmt.Errorf("...: %w", Sentinel) and callers test
// with errors.Is.
package xerrors

import "errors"

var (
	// TransportError marks a failure in the underlying connection (dial,
	// read, write, unexpected close) as opposed to a business-level
	// rejection.
	TransportError = errors.New("transport error")

	// AuthError marks a rejected or expired credential. It is never
	// auto-retried; the caller must re-issue a token grant.
	AuthError = errors.New("authentication error")

	// RateLimitError marks a 429/throttle response. Callers that see this
	// wrapped should back off according to the retry-after hint if one was
	// attached, rather than retrying immediately.
	RateLimitError = errors.New("rate limited")

	// RetryableRpcError marks a transient RPC failure (HTTP 5xx) that is
	// safe to retry with backoff; timeouts surface as TransportError. It is
	// distinct from BrokerBusinessError: retry only the former.
	RetryableRpcError = errors.New("retryable rpc error")

	// BrokerBusinessError marks a broker-side rejection that retrying will
	// not fix (insufficient balance, invalid symbol, order already filled).
	BrokerBusinessError = errors.New("broker business error")

	// DataQualityError marks malformed or internally inconsistent market
	// data (negative volume, high below low, unparsable payload).
	DataQualityError = errors.New("data quality error")

	// InvariantViolation marks a detected breach of a ledger or reconciler
	// invariant. It should never be reachable in correct operation; seeing
	// it wrapped anywhere is a bug, not an expected runtime condition.
	InvariantViolation = errors.New("invariant violation")
)
