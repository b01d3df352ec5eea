// Package recovery implements the error taxonomy, retry strategy, and
// graceful-degradation logic of spec.md §4.8 (C8).
package recovery

import (
	"errors"
	"strings"

	"github.com/looplj/harmonygate/llm"
)

// Kind is the disposition-bearing error classification from spec.md §4.8.
type Kind string

const (
	KindNotReady       Kind = "not_ready"
	KindInvalidInput   Kind = "invalid_input"
	KindContextOverflow Kind = "context_overflow"
	KindMemory         Kind = "memory"
	KindTransient      Kind = "transient"
	KindCancelled      Kind = "cancelled"
	KindUnknown        Kind = "unknown"
)

func (k Kind) String() string {
	return string(k)
}

// transientMarkers are substrings whose presence in an error message marks
// it Transient (spec.md §4.8 table).
var transientMarkers = []string{"timeout", "temporary", "busy", "connection", "unavailable"}

// Classify maps err onto the taxonomy. Sentinel errors from package llm are
// checked first via errors.Is; anything else falls back to substring
// matching on the error message, then Unknown.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrNotReady):
		return KindNotReady
	case errors.Is(err, llm.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, llm.ErrContextOverflow):
		return KindContextOverflow
	case errors.Is(err, llm.ErrMemory):
		return KindMemory
	case errors.Is(err, llm.ErrCancelled):
		return KindCancelled
	case errors.Is(err, llm.ErrTransient):
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return KindTransient
		}
	}

	return KindUnknown
}

// Disposition describes how a classified error should be handled.
type Disposition string

const (
	DispositionFatal      Disposition = "fatal"
	DispositionDegradable Disposition = "degradable"
	DispositionRecoverable Disposition = "recoverable"
	DispositionSurface    Disposition = "surface"
)

// DispositionFor returns the handling strategy for a classified Kind.
// Unknown gets one retry (Recoverable) before becoming Fatal; callers
// enforce the "then fatal" half by tracking attempt counts themselves.
func DispositionFor(k Kind) Disposition {
	switch k {
	case KindNotReady, KindInvalidInput:
		return DispositionFatal
	case KindContextOverflow, KindMemory:
		return DispositionDegradable
	case KindTransient, KindUnknown:
		return DispositionRecoverable
	case KindCancelled:
		return DispositionSurface
	default:
		return DispositionFatal
	}
}
