package constants

import "errors"

// Errors
var (
	ErrNoSession          = errors.New("no active collaboration session")
	ErrShareNotFound      = errors.New("share not found or expired")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrUnsupportedVersion = errors.New("unsupported message version")
	ErrEditNotAllowed     = errors.New("editing is not allowed in this session")
	ErrInvalidImage       = errors.New("invalid image")
	ErrImageTooLarge      = errors.New("image too large")
	ErrImageLoad          = errors.New("failed to load image")
	ErrTimeout            = errors.New("timeout")
	ErrClosed             = errors.New("connection closed")
	ErrIDInUse            = errors.New("id already in use")
	ErrReadOnly           = errors.New("operation denied: store is in read-only mode")
	ErrMagazineNotFound   = errors.New("magazine not found")
	ErrArticleNotFound    = errors.New("article not found")
	ErrInvalidShareURL    = errors.New("invalid share url")
	ErrChecksumMismatch   = errors.New("share checksum mismatch")
	ErrIllegalTransition  = errors.New("illegal connection status transition")
)
