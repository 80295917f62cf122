// errors.go: Error taxonomy and driver status mapping for the PSA engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"errors"
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// Public error kinds. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is().
var (
	// ErrInvalidArgument is returned for malformed or unsupported algorithm
	// identifiers and for inconsistent lengths.
	ErrInvalidArgument = errors.New("psa: invalid argument")

	// ErrNotPermitted is returned when the key policy forbids the algorithm or usage.
	ErrNotPermitted = errors.New("psa: not permitted")

	// ErrNotSupported is returned for structurally valid but unimplemented combinations.
	ErrNotSupported = errors.New("psa: not supported")

	// ErrBadState is returned when a call is made out of the setup/update/finish
	// sequence, on an inactive operation, or against a busy hardware instance.
	ErrBadState = errors.New("psa: bad state")

	// ErrBufferTooSmall is returned when a caller output buffer is undersized.
	ErrBufferTooSmall = errors.New("psa: buffer too small")

	// ErrInvalidSignature is returned on MAC, hash, signature or AEAD tag mismatch.
	ErrInvalidSignature = errors.New("psa: invalid signature")

	// ErrHardwareFailure is returned for primitive-layer errors not otherwise classified.
	ErrHardwareFailure = errors.New("psa: hardware failure")

	// ErrInsufficientMemory is returned when a driver runs out of resources.
	ErrInsufficientMemory = errors.New("psa: insufficient memory")

	// ErrInvalidHandle is returned for key identifiers outside any valid range.
	ErrInvalidHandle = errors.New("psa: invalid handle")

	// ErrDoesNotExist is returned when a key identifier is well formed but unknown.
	ErrDoesNotExist = errors.New("psa: does not exist")

	// ErrAlreadyExists is returned when importing a persistent key over an existing one.
	ErrAlreadyExists = errors.New("psa: already exists")

	// ErrStorageFailure is returned when the persistent key backend fails.
	ErrStorageFailure = errors.New("psa: storage failure")

	// ErrInsufficientEntropy is returned when the entropy source cannot deliver.
	ErrInsufficientEntropy = errors.New("psa: insufficient entropy")
)

// Error codes for rich error handling
const (
	ErrCodeInvalidArgument     = "PSA_INVALID_ARGUMENT"
	ErrCodeNotPermitted        = "PSA_NOT_PERMITTED"
	ErrCodeNotSupported        = "PSA_NOT_SUPPORTED"
	ErrCodeBadState            = "PSA_BAD_STATE"
	ErrCodeBufferTooSmall      = "PSA_BUFFER_TOO_SMALL"
	ErrCodeInvalidSignature    = "PSA_INVALID_SIGNATURE"
	ErrCodeHardwareFailure     = "PSA_HARDWARE_FAILURE"
	ErrCodeInsufficientMemory  = "PSA_INSUFFICIENT_MEMORY"
	ErrCodeInvalidHandle       = "PSA_INVALID_HANDLE"
	ErrCodeDoesNotExist        = "PSA_DOES_NOT_EXIST"
	ErrCodeAlreadyExists       = "PSA_ALREADY_EXISTS"
	ErrCodeStorageFailure      = "PSA_STORAGE_FAILURE"
	ErrCodeInsufficientEntropy = "PSA_INSUFFICIENT_ENTROPY"
	ErrCodeConfig              = "PSA_CONFIG"
)

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, goerrors.New(ErrCodeInvalidArgument, fmt.Sprintf(format, args...)))
}

func notPermitted(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", ErrNotPermitted, goerrors.New(ErrCodeNotPermitted, fmt.Sprintf(format, args...)))
}

func notSupported(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", ErrNotSupported, goerrors.New(ErrCodeNotSupported, fmt.Sprintf(format, args...)))
}

func badState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", ErrBadState, goerrors.New(ErrCodeBadState, fmt.Sprintf(format, args...)))
}

func bufferTooSmall(need, got int) error {
	richErr := goerrors.New(ErrCodeBufferTooSmall, fmt.Sprintf("output buffer too small: need %d bytes, got %d", need, got))
	return fmt.Errorf("%w: %w", ErrBufferTooSmall, richErr)
}

func invalidSignature(msg string) error {
	return fmt.Errorf("%w: %w", ErrInvalidSignature, goerrors.New(ErrCodeInvalidSignature, msg))
}

func invalidHandle(id KeyID) error {
	richErr := goerrors.New(ErrCodeInvalidHandle, fmt.Sprintf("key id 0x%08x is not a valid handle", uint32(id)))
	return fmt.Errorf("%w: %w", ErrInvalidHandle, richErr)
}

func doesNotExist(id KeyID) error {
	richErr := goerrors.New(ErrCodeDoesNotExist, fmt.Sprintf("key id 0x%08x does not exist", uint32(id)))
	return fmt.Errorf("%w: %w", ErrDoesNotExist, richErr)
}

func storageFailure(err error, msg string) error {
	return fmt.Errorf("%w: %w", ErrStorageFailure, goerrors.Wrap(err, ErrCodeStorageFailure, msg))
}

// DriverStatus is the family-agnostic status code reported by a hardware
// primitive driver.
type DriverStatus int

const (
	StatusError               DriverStatus = iota + 1 // unclassified driver failure
	StatusResourceUnavailable                         // instance busy or not open
	StatusInvalidKey                                  // key material rejected
	StatusInvalidInput                                // misaligned or out-of-range input
	StatusMACInvalid                                  // authentication tag mismatch
	StatusCanceled                                    // operation canceled mid-flight
	StatusUnsupported                                 // mode or curve not implemented
	StatusNoMemory                                    // driver resource exhaustion
	StatusEntropy                                     // entropy source failure
	StatusInvalidPoint                                // public point not on curve
)

var driverStatusNames = map[DriverStatus]string{
	StatusError:               "error",
	StatusResourceUnavailable: "resource unavailable",
	StatusInvalidKey:          "invalid key",
	StatusInvalidInput:        "invalid input",
	StatusMACInvalid:          "mac invalid",
	StatusCanceled:            "canceled",
	StatusUnsupported:         "unsupported",
	StatusNoMemory:            "no memory",
	StatusEntropy:             "entropy failure",
	StatusInvalidPoint:        "invalid point",
}

func (s DriverStatus) String() string {
	if name, ok := driverStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// DriverError is the error type returned by hardware primitive drivers.
type DriverError struct {
	Family string       // driver family, e.g. "aes-gcm"
	Op     string       // failing entry point
	Status DriverStatus // classified status
	Err    error        // underlying cause, if any
}

func (e *DriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Family, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Family, e.Op, e.Status)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

func driverErr(family, op string, status DriverStatus, cause error) error {
	return &DriverError{Family: family, Op: op, Status: status, Err: cause}
}

// mapDriverError translates a driver error into the public taxonomy. Errors
// that already carry a taxonomy kind pass through unchanged.
func mapDriverError(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		ErrInvalidArgument, ErrNotPermitted, ErrNotSupported, ErrBadState, ErrBufferTooSmall,
		ErrInvalidSignature, ErrHardwareFailure, ErrInsufficientMemory, ErrInsufficientEntropy,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}

	var de *DriverError
	if !errors.As(err, &de) {
		return fmt.Errorf("%w: %w", ErrHardwareFailure, goerrors.Wrap(err, ErrCodeHardwareFailure, "primitive call failed"))
	}

	msg := de.Family + " " + de.Op
	switch de.Status {
	case StatusMACInvalid:
		return fmt.Errorf("%w: %w", ErrInvalidSignature, goerrors.Wrap(err, ErrCodeInvalidSignature, msg))
	case StatusInvalidKey, StatusInvalidInput, StatusInvalidPoint:
		return fmt.Errorf("%w: %w", ErrInvalidArgument, goerrors.Wrap(err, ErrCodeInvalidArgument, msg))
	case StatusResourceUnavailable, StatusCanceled:
		return fmt.Errorf("%w: %w", ErrBadState, goerrors.Wrap(err, ErrCodeBadState, msg))
	case StatusUnsupported:
		return fmt.Errorf("%w: %w", ErrNotSupported, goerrors.Wrap(err, ErrCodeNotSupported, msg))
	case StatusNoMemory:
		return fmt.Errorf("%w: %w", ErrInsufficientMemory, goerrors.Wrap(err, ErrCodeInsufficientMemory, msg))
	case StatusEntropy:
		return fmt.Errorf("%w: %w", ErrInsufficientEntropy, goerrors.Wrap(err, ErrCodeInsufficientEntropy, msg))
	default:
		return fmt.Errorf("%w: %w", ErrHardwareFailure, goerrors.Wrap(err, ErrCodeHardwareFailure, msg))
	}
}
