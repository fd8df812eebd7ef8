package marketdata

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a fetch failure. Only RateLimited and Transient are worth
// retrying; NoData and Fatal short-circuit the symbol for the cycle.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindTransient   Kind = "transient"
	KindNoData      Kind = "no_data"
	KindFatal       Kind = "fatal"
)

// FetchError carries the classification alongside the upstream cause.
type FetchError struct {
	Kind    Kind
	Symbol  string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error for %s: %s (%v)", e.Kind, e.Symbol, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error for %s: %s", e.Kind, e.Symbol, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Cause }

func NewRateLimited(symbol, message string, cause error) *FetchError {
	return &FetchError{Kind: KindRateLimited, Symbol: symbol, Message: message, Cause: cause}
}

func NewTransient(symbol, message string, cause error) *FetchError {
	return &FetchError{Kind: KindTransient, Symbol: symbol, Message: message, Cause: cause}
}

func NewNoData(symbol string) *FetchError {
	return &FetchError{Kind: KindNoData, Symbol: symbol, Message: "no bars returned"}
}

func NewFatal(symbol, message string, cause error) *FetchError {
	return &FetchError{Kind: KindFatal, Symbol: symbol, Message: message, Cause: cause}
}

// KindOf extracts the classification, defaulting unknown errors to Transient
// so the retry policy gives them the benefit of the doubt.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// Retryable is the fetcher's retry predicate.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindTransient:
		return true
	default:
		return false
	}
}

// Classify maps an upstream error onto the taxonomy by inspecting its text.
// The Yahoo chart client surfaces throttling and bad symbols only as message
// strings, so this is string matching on purpose.
func Classify(symbol string, err error) *FetchError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"), strings.Contains(msg, "rate limit"):
		return NewRateLimited(symbol, "upstream throttled", err)
	case strings.Contains(msg, "not found"), strings.Contains(msg, "invalid symbol"), strings.Contains(msg, "no data found, symbol may be delisted"):
		return NewFatal(symbol, "symbol rejected upstream", err)
	default:
		return NewTransient(symbol, "fetch failed", err)
	}
}
