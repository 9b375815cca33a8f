package coordinator

import "errors"

var (
	// ErrUserCancelled means the user declined the confirmation step; no
	// transfer was started. Presentation logic suppresses error dialogs for
	// this kind.
	ErrUserCancelled = errors.New("install cancelled by user")

	// ErrInstallAlreadyActive rejects a second foreground install while one
	// is still running. Requests are rejected, never queued.
	ErrInstallAlreadyActive = errors.New("a foreground install is already active")

	// ErrNoDownloadableCore means no downloadable core supports the
	// requested system.
	ErrNoDownloadableCore = errors.New("no downloadable core for system")

	// ErrCoreNotAvailable means the requested core identifier is not in the
	// current task set.
	ErrCoreNotAvailable = errors.New("core not available")
)
