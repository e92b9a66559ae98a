package chain

import (
	"context"
	"errors"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrNotConnected      = errors.New("provider not connected")
	ErrWrongNetwork      = errors.New("wrong network")
	ErrNoContract        = errors.New("contract not deployed")
	ErrRateLimited       = errors.New("rate limited")
	ErrUserRejected      = errors.New("transaction rejected by user")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrGasFailure        = errors.New("gas estimation failed")
)

// ErrorKind classifies a provider or contract error for display.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindConnectivity      ErrorKind = "connectivity"
	KindRateLimit         ErrorKind = "rate_limit"
	KindUserRejected      ErrorKind = "user_rejected"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindGas               ErrorKind = "gas"
	KindUnknown           ErrorKind = "unknown"
)

// maxErrorMessage bounds unknown error messages surfaced verbatim.
const maxErrorMessage = 120

// JSON-RPC codes: EIP-1193 user rejection and the common "limit exceeded" code.
const (
	codeUserRejected  = 4001
	codeLimitExceeded = -32005
)

// Classify maps an error onto the error taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return KindRateLimit
	case errors.Is(err, ErrUserRejected):
		return KindUserRejected
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrGasFailure):
		return KindGas
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrWrongNetwork), errors.Is(err, ErrNoContract):
		return KindConnectivity
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return KindUserRejected
		case codeLimitExceeded:
			return KindRateLimit
		}
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 429 {
		return KindRateLimit
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsWord(msg, "429"), containsAny(msg, "rate limit", "too many requests", "request limit", "exceeded the limit", "throttl"):
		return KindRateLimit
	case containsAny(msg, "user rejected", "user denied", "rejected by user"):
		return KindUserRejected
	case containsAny(msg, "insufficient funds", "insufficient balance", "exceeds balance"):
		return KindInsufficientFunds
	case containsAny(msg, "gas required exceeds", "out of gas", "intrinsic gas", "cannot estimate gas", "gas limit"):
		return KindGas
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) ||
		containsAny(msg, "connection refused", "no such host", "connection reset") {
		return KindConnectivity
	}
	return KindUnknown
}

// IsRateLimit reports whether err is a rate-limit signal.
func IsRateLimit(err error) bool {
	return Classify(err) == KindRateLimit
}

// Describe renders a user-facing message for err.
func Describe(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindConnectivity:
		return "setup required: " + Truncate(err.Error())
	case KindRateLimit:
		return "provider rate limit reached, try again shortly"
	case KindUserRejected:
		return "transaction rejected"
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindGas:
		return "transaction would fail: gas estimation failed"
	default:
		return Truncate(err.Error())
	}
}

// Truncate shortens a message for display.
func Truncate(msg string) string {
	if len(msg) <= maxErrorMessage {
		return msg
	}
	cut := maxErrorMessage
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}

// containsWord reports whether word occurs in s without alphanumeric
// neighbours, so status codes do not match inside hex hashes.
func containsWord(s, word string) bool {
	for offset := 0; ; {
		idx := strings.Index(s[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(word)
		if (start == 0 || !isAlnum(s[start-1])) && (end == len(s) || !isAlnum(s[end])) {
			return true
		}
		offset = start + 1
	}
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
