package extraction

import "errors"

var (
	// ErrUnsupportedFormat is returned by ExportTriples and ParseTriples for
	// any format other than csv or jsonl.
	ErrUnsupportedFormat = errors.New("extraction: unsupported format")

	// ErrDetectorFailed wraps a failure raised by a mention detector.
	ErrDetectorFailed = errors.New("extraction: detector failed")

	// ErrInvalidLexicon is returned when dictionaries or relation tables
	// fail validation.
	ErrInvalidLexicon = errors.New("extraction: invalid lexicon")

	// ErrEmptyText is returned by callers that require non-blank input.
	// The pipeline itself accepts empty text and yields an empty result.
	ErrEmptyText = errors.New("extraction: text is empty")
)
