package errs

import "errors"

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrBadRequest         = errors.New("bad request")
	ErrNotFound           = errors.New("not found")
	ErrDeleted            = errors.New("message deleted")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUploadFailed       = errors.New("upload failed")
)

// Unavailable tags a transient backend error so callers can match it
// with errors.Is(err, ErrStorageUnavailable) while keeping the cause.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStorageUnavailable, err)
}
