package device

import "errors"

// The error kinds surfaced by this package. All of them are deterministic
// validation failures: they are returned to the caller immediately and are
// never retried internally. Callers match them with errors.Is and render
// messages as needed.
var (
	// ErrInvalidArgument marks a value that is not a size where a size was
	// required. SetTargetSize itself only accepts datasizes.Size, so the
	// kind surfaces at the boundaries that convert untyped input, e.g.
	// command line arguments.
	ErrInvalidArgument = errors.New("new size must be a size value")

	// ErrSizeTooSmall marks a requested size below the device minimum.
	ErrSizeTooSmall = errors.New("requested size is smaller than the minimum")

	// ErrSizeTooLarge marks a requested size above the device maximum.
	ErrSizeTooLarge = errors.New("requested size is larger than the maximum")

	// ErrUnaligned marks a requested size whose end sector is not aligned
	// to the disk's grain.
	ErrUnaligned = errors.New("new size is not end-aligned")

	// ErrDevice marks a construction-time binding failure: the device
	// claims to exist but no matching partition table entry was found.
	ErrDevice = errors.New("device error")
)
