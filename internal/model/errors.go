package model

//
// Error taxonomy for the resolution pipeline.
//

import "errors"

var (
	// ErrFetch indicates a network or transport failure.
	ErrFetch = errors.New("fetch error")

	// ErrParse indicates a malformed manifest or a manifest missing a
	// required field such as the bundle URL.
	ErrParse = errors.New("parse error")

	// ErrVerificationRejected indicates that a manifest signature was
	// present but invalid while the device was online.
	ErrVerificationRejected = errors.New("manifest verification rejected")

	// ErrIncompatibleVersion indicates that a manifest declares an SDK
	// version this host cannot run. This error is always fatal for the
	// resolution attempt that encounters it.
	ErrIncompatibleVersion = errors.New("incompatible sdk version")

	// ErrDispatch indicates a multi-version dispatch failure.
	ErrDispatch = errors.New("dispatch error")
)
