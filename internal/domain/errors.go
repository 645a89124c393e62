package domain

import "errors"

var (
	ErrDeviceUnavailable   = errors.New("audio device unavailable")
	ErrAlreadyCapturing    = errors.New("audio capture already active")
	ErrModelUnavailable    = errors.New("speech model unavailable")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrInjectionDenied     = errors.New("text injection denied")
	ErrInjectionTargetLost = errors.New("text injection target lost")
	ErrStorageUnavailable  = errors.New("recording storage unavailable")
	ErrStorageFull         = errors.New("recording storage full")

	// ErrPermissionDenied marks failures that only an OS permission grant can fix.
	ErrPermissionDenied = errors.New("permission denied by operating system")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrDeviceUnavailable, "device_unavailable"},
	{ErrAlreadyCapturing, "already_capturing"},
	{ErrModelUnavailable, "model_unavailable"},
	{ErrTranscriptionFailed, "transcription_failed"},
	{ErrInjectionDenied, "injection_denied"},
	{ErrInjectionTargetLost, "injection_target_lost"},
	{ErrStorageUnavailable, "storage_unavailable"},
	{ErrStorageFull, "storage_full"},
}

// Kind returns a stable name for the category of err, or "unknown".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

// NeedsPermission reports whether err requires the user to grant an OS
// permission (microphone or accessibility) before a retry can succeed.
func NeedsPermission(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrInjectionDenied)
}

// IsStorage reports whether err came from recording persistence.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrStorageFull)
}
