package medkg

import "errors"

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("medkg: invalid configuration")

	// ErrUnsupportedDocument is returned for input files no parser handles.
	ErrUnsupportedDocument = errors.New("medkg: unsupported document format")

	// ErrParsingFailed is returned when a document cannot be read.
	ErrParsingFailed = errors.New("medkg: parsing failed")

	// ErrStoreUnavailable is returned when the graph store cannot be opened.
	ErrStoreUnavailable = errors.New("medkg: graph store unavailable")

	// ErrUnsupportedBackend is returned for operations the configured graph
	// store does not offer.
	ErrUnsupportedBackend = errors.New("medkg: operation not supported by store backend")
)
