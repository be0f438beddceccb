package ecengine

import (
	"errors"
)

// ErrorKind identifies a kind of error. It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error related to an elliptic curve operation. It has
// full support for errors.Is and errors.As, so the caller can ascertain the
// specific reason for the error by checking the underlying error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}

// These constants are used to identify a specific Error.
const (
	// ErrInvalidArgument is returned when a required argument is missing or
	// malformed, for example a nil context, curve or result point.
	ErrInvalidArgument = ErrorKind("ErrInvalidArgument")

	// ErrBufferTooSmall is returned when a destination buffer cannot hold
	// the coordinate byte length of the curve.
	ErrBufferTooSmall = ErrorKind("ErrBufferTooSmall")

	// ErrInvalidState is returned when the context has not been configured
	// with what the operation needs (no curve, no device, no key).
	ErrInvalidState = ErrorKind("ErrInvalidState")

	// ErrZeroScalar is returned when a scalar is zero or equal to the group
	// order, either of which collapses a multiplication to the identity.
	ErrZeroScalar = ErrorKind("ErrZeroScalar")

	// ErrInvalidPoint is returned when a point has the wrong coordinate
	// length, is marked undefined, or is not on the curve.
	ErrInvalidPoint = ErrorKind("ErrInvalidPoint")

	// ErrPointAtInfinity is returned when the result of a multiplication is
	// the all-zero coordinate vector and the corresponding trap is enabled.
	ErrPointAtInfinity = ErrorKind("ErrPointAtInfinity")

	// ErrSigFieldRange is returned when r or s of a signature lies outside
	// [1, n-1].
	ErrSigFieldRange = ErrorKind("ErrSigFieldRange")

	// ErrSignatureMismatch is returned when a well-formed signature does not
	// verify against the digest and public key.
	ErrSignatureMismatch = ErrorKind("ErrSignatureMismatch")

	// ErrSignatureInvalid is returned when verification hits a degenerate
	// intermediate, such as reflected witness points.
	ErrSignatureInvalid = ErrorKind("ErrSignatureInvalid")

	// ErrRandomSource is returned when the random source fails or keeps
	// producing degenerate values past the retry bound.
	ErrRandomSource = ErrorKind("ErrRandomSource")

	// ErrScratchExhausted is returned when the scratch allocator cannot
	// satisfy a request.
	ErrScratchExhausted = ErrorKind("ErrScratchExhausted")

	// ErrUnsupported is returned when a curve and operation combination is
	// not available.
	ErrUnsupported = ErrorKind("ErrUnsupported")

	// ErrEngine is returned when the accelerator reports a failure.
	ErrEngine = ErrorKind("ErrEngine")

	// ErrInternal is returned when an internal consistency check fails.
	ErrInternal = ErrorKind("ErrInternal")

	// ErrSigTooShort is returned when a DER signature is too short to hold
	// a sequence of two integers.
	ErrSigTooShort = ErrorKind("ErrSigTooShort")

	// ErrSigInvalidSeqID is returned when a DER signature does not start
	// with the ASN.1 sequence identifier.
	ErrSigInvalidSeqID = ErrorKind("ErrSigInvalidSeqID")

	// ErrSigInvalidDataLen is returned when the sequence length of a DER
	// signature does not match the remaining bytes.
	ErrSigInvalidDataLen = ErrorKind("ErrSigInvalidDataLen")

	// ErrSigInvalidInteger is returned when r or s of a DER signature is not
	// a well-formed, non-negative INTEGER that fits the curve.
	ErrSigInvalidInteger = ErrorKind("ErrSigInvalidInteger")

	// ErrSigTrailingData is returned when bytes follow the two integers or
	// the sequence itself.
	ErrSigTrailingData = ErrorKind("ErrSigTrailingData")
)

// ErrorClass is the coarse classification callers receive for every failed
// call.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassInvalidArguments
	ClassInvalidState
	ClassInvalidValue
	ClassResourceExhaustion
	ClassUnsupported
	ClassEngineFailure
)

var classNames = map[ErrorClass]string{
	ClassNone:               "none",
	ClassInvalidArguments:   "invalid-arguments",
	ClassInvalidState:       "invalid-state",
	ClassInvalidValue:       "invalid-value",
	ClassResourceExhaustion: "resource-exhaustion",
	ClassUnsupported:        "unsupported",
	ClassEngineFailure:      "engine-failure",
}

func (c ErrorClass) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return "unknown"
}

var kindClasses = map[ErrorKind]ErrorClass{
	ErrInvalidArgument:   ClassInvalidArguments,
	ErrBufferTooSmall:    ClassInvalidArguments,
	ErrInvalidState:      ClassInvalidState,
	ErrZeroScalar:        ClassInvalidValue,
	ErrInvalidPoint:      ClassInvalidValue,
	ErrPointAtInfinity:   ClassInvalidValue,
	ErrSigFieldRange:     ClassInvalidValue,
	ErrSignatureMismatch: ClassInvalidValue,
	ErrSignatureInvalid:  ClassInvalidValue,
	ErrSigTooShort:       ClassInvalidValue,
	ErrSigInvalidSeqID:   ClassInvalidValue,
	ErrSigInvalidDataLen: ClassInvalidValue,
	ErrSigInvalidInteger: ClassInvalidValue,
	ErrSigTrailingData:   ClassInvalidValue,
	ErrRandomSource:      ClassEngineFailure,
	ErrScratchExhausted:  ClassResourceExhaustion,
	ErrUnsupported:       ClassUnsupported,
	ErrEngine:            ClassEngineFailure,
	ErrInternal:          ClassEngineFailure,
}

// Class returns the classification of err. Errors that do not carry an
// ErrorKind are treated as opaque engine failures.
func Class(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		if c, ok := kindClasses[kind]; ok {
			return c
		}
	}
	return ClassEngineFailure
}
