package domain

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes the four failure classes of a processing run.
type ErrorKind string

const (
	// KindParse: the statement could not be decoded or parsed.
	KindParse ErrorKind = "parse"
	// KindClassification: the oracle broke its contract.
	KindClassification ErrorKind = "classification"
	// KindOracle: the oracle call itself failed (network, auth, quota, timeout).
	KindOracle ErrorKind = "oracle"
	// KindConfiguration: required settings are missing.
	KindConfiguration ErrorKind = "configuration"
)

// Sentinels for errors.Is checks.
var (
	ErrParse          = errors.New("parse error")
	ErrClassification = errors.New("classification error")
	ErrOracle         = errors.New("oracle error")
	ErrConfiguration  = errors.New("configuration error")
)

// Error is a failure tagged with its kind and the operation that raised it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrParse:
		return e.Kind == KindParse
	case ErrClassification:
		return e.Kind == KindClassification
	case ErrOracle:
		return e.Kind == KindOracle
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	}
	return false
}

func ParseError(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

func ClassificationError(op string, err error) error {
	return &Error{Kind: KindClassification, Op: op, Err: err}
}

func OracleError(op string, err error) error {
	return &Error{Kind: KindOracle, Op: op, Err: err}
}

func ConfigurationError(op string, err error) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// KindOf returns the kind of the first tagged error in err's chain, or ""
// when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
