package download

import "errors"

var (
	// ErrChecksumMismatch marks a payload whose content hash did not match
	// the manifest. The downloaded artifact is deleted before the error is
	// reported; retrying is a caller decision.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrCancelled is delivered through the failure channel when a transfer
	// is cancelled. Callers distinguish cancellation from genuine failure by
	// this error kind, not by a separate callback.
	ErrCancelled = errors.New("download cancelled")

	// ErrExtractionFailed wraps archive-extraction failures after a verified
	// download.
	ErrExtractionFailed = errors.New("archive extraction failed")

	// ErrPluginLoadFailed wraps failures to obtain a plugin handle from a
	// freshly extracted bundle.
	ErrPluginLoadFailed = errors.New("plugin load failed")
)
