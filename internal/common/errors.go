package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal = errors.New("internal error")

	// network-mode specific errors
	ErrorOffline = errors.New("offline")

	// verification specific errors
	ErrorVerificationCancelled  = errors.New("verification cancelled")
	ErrorPendingUploads         = errors.New("pending uploads")
	ErrorVerificationIncomplete = errors.New("verification incomplete")
)
