package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// Payload is one typed document produced by a fetch. A single fetch
// may yield several payloads (e.g. a price page plus a flow table).
type Payload struct {
	DataType string
	DataDate time.Time
	Content  map[string]any
}

// Fetcher collects one kind of data from one registered site
type Fetcher interface {
	// Site returns the registry row this fetcher serves
	Site() contracts.Site
	// DomainID distinguishes payload families within one site
	DomainID() int
	// Retry returns the retry policy suited to the source
	Retry() RetryPolicy
	// Fetch collects payloads for one ticker
	Fetch(ctx context.Context, ticker contracts.Ticker) ([]Payload, error)
}

// Kind classifies a fetch failure. Only transient failures retry.
type Kind string

const (
	KindTransient Kind = "transient" // timeout, 5xx, connection reset
	KindNotFound  Kind = "not_found" // ticker unknown to the source
	KindParse     Kind = "parse"     // payload shape changed
	KindBlocked   Kind = "blocked"   // 429 or bot detection
	KindAuth      Kind = "auth"      // credential rejected
)

// Error is the typed fetch failure
type Error struct {
	Kind Kind
	Site string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Site, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errf builds a typed fetch error
func Errf(kind Kind, site string, format string, args ...any) error {
	return &Error{Kind: kind, Site: site, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind, defaulting to transient so that
// unclassified errors (deadline exceeded, dropped connections) retry.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// RetryPolicy bounds the retry loop for transient failures
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// 소스 성격별 재시도 프리셋
var (
	RetryQuick      = RetryPolicy{MaxAttempts: 2, InitialDelay: 500 * time.Millisecond, Multiplier: 1.5}
	RetryStandard   = RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 2.0}
	RetryPersistent = RetryPolicy{MaxAttempts: 5, InitialDelay: 2 * time.Second, Multiplier: 2.0}
)
