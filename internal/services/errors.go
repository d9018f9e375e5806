package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExtraction    = errors.New("extraction failure")
	ErrUnavailable   = errors.New("media unavailable")
	ErrNetwork       = errors.New("network failure")
	ErrIntegrity     = errors.New("integrity mismatch")
	ErrNoSchedule    = errors.New("no scheduled document")
	ErrNoDatabase    = errors.New("no publication database")
	ErrConfiguration = errors.New("configuration error")
)

// Error tags a failure with the resource it concerns (filename, publication
// key, or URL) so user-facing reporting can name it.
type Error struct {
	Marker    error
	Resource  string
	Operation string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Resource, e.Operation)
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Marker, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// ErrorKind classifies the error for status reporting.
func (e *Error) ErrorKind() string {
	return kindOf(e.Marker)
}

// Wrap builds an error tagged with marker and the offending resource. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, resource, operation string, err error) error {
	if marker == nil {
		marker = ErrNetwork
	}
	return &Error{
		Marker:    marker,
		Resource:  strings.TrimSpace(resource),
		Operation: strings.TrimSpace(operation),
		Err:       err,
	}
}

// ResourceOf returns the resource identifier attached to err, if any.
func ResourceOf(err error) string {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Resource
	}
	return ""
}

// Kind returns the classification for err, or "unknown".
func Kind(err error) string {
	var classifier interface{ ErrorKind() string }
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return "unknown"
}

// IsItemLevel reports whether err concerns a single media item and must not
// abort work on its siblings.
func IsItemLevel(err error) bool {
	switch {
	case errors.Is(err, ErrExtraction),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrNetwork),
		errors.Is(err, ErrIntegrity):
		return true
	default:
		return false
	}
}

func kindOf(marker error) string {
	switch {
	case errors.Is(marker, ErrExtraction):
		return "extraction"
	case errors.Is(marker, ErrUnavailable):
		return "unavailable"
	case errors.Is(marker, ErrNetwork):
		return "network"
	case errors.Is(marker, ErrIntegrity):
		return "integrity"
	case errors.Is(marker, ErrNoSchedule):
		return "no_schedule"
	case errors.Is(marker, ErrNoDatabase):
		return "no_database"
	case errors.Is(marker, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}

func buildDetail(resource, operation string) string {
	parts := make([]string, 0, 2)
	if resource != "" {
		parts = append(parts, resource)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "media failure"
	}
	return strings.Join(parts, ": ")
}
