// Package extract provides the shared error taxonomy and per-extraction
// state machine every orchestrator (subtitle, thumbnail, metadata)
// rides on, per spec.md section 7 and section 4.6's "state machine"
// note. It owns nothing about box parsing or byte fetching itself.
package extract

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Category is one of the seven error kinds in spec.md section 7.
type Category int

const (
	// Transport covers I/O or HTTP failures, including request timeouts.
	Transport Category = iota
	// Format covers a box header violating size rules, a required box
	// missing, or sample-table entry counts that don't add up.
	Format
	// Range covers a computed absolute sample offset outside file bounds.
	Range
	// Codec covers a collaborator (subtitle/H.264/image) rejecting a sample.
	Codec
	// Timeout covers an extraction-level wall-clock deadline expiring.
	Timeout
	// Cancelled covers the caller's context being cancelled.
	Cancelled
	// NotFound covers "no track of the requested kind."
	NotFound
)

func (c Category) String() string {
	switch c {
	case Transport:
		return "transport"
	case Format:
		return "format"
	case Range:
		return "range"
	case Codec:
		return "codec"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a categorized extraction failure. Errors.Is matches on
// Category via the sentinel values below (ErrTransport, ErrFormat,
// ...); errors.As recovers the full Error including its wrapped cause.
type Error struct {
	Category Category
	cause    error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Category.String()
	}
	return e.Category.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is the sentinel for this error's category,
// so callers can write errors.Is(err, extract.ErrFormat).
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	return ok && sentinel.cause == nil && sentinel.Category == e.Category
}

// Sentinels for errors.Is comparisons, one per Category.
var (
	ErrTransport = &Error{Category: Transport}
	ErrFormat    = &Error{Category: Format}
	ErrRange     = &Error{Category: Range}
	ErrCodec     = &Error{Category: Codec}
	ErrTimeout   = &Error{Category: Timeout}
	ErrCancelled = &Error{Category: Cancelled}
	ErrNotFound  = &Error{Category: NotFound}
)

// Wrap attaches a category to cause, preserving it as the Unwrap chain
// so pkg/errors' stack trace (if cause carries one) survives.
func Wrap(category Category, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &Error{Category: category, cause: errors.Wrap(cause, msg)}
}

// State is one stage of the per-extraction lifecycle in spec.md
// section 4.6: Idle -> Locating -> Parsing -> Planning -> Fetching ->
// Decoding -> Complete|Failed. Failed and Complete are terminal;
// there is no pause/resume.
type State int

const (
	Idle State = iota
	Locating
	Parsing
	Planning
	Fetching
	Decoding
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Locating:
		return "locating"
	case Parsing:
		return "parsing"
	case Planning:
		return "planning"
	case Fetching:
		return "fetching"
	case Decoding:
		return "decoding"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Extraction tracks one orchestrator run's state and carries the
// context/deadline/correlation ID its steps should respect and log
// under. Orchestrators construct one via New, call Advance at each
// lifecycle stage, and call Fail or Finish exactly once at the end.
type Extraction struct {
	ID  uuid.UUID
	Ctx context.Context

	mu    sync.Mutex
	state State
}

// New creates an Extraction bound to ctx, tagged with a fresh UUID for
// log correlation (spec.md's ambient-stack requirement; the ID never
// appears in parsed data). If timeout > 0, ctx is derived with that
// deadline and the returned cancel func must be called by the caller
// once the extraction finishes, successfully or not.
func New(ctx context.Context, timeout time.Duration) (*Extraction, context.CancelFunc) {
	id := uuid.New()
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	return &Extraction{ID: id, Ctx: ctx, state: Idle}, cancel
}

// State returns the extraction's current lifecycle state.
func (e *Extraction) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Advance moves the extraction to the next lifecycle state and logs
// the transition at debug level.
func (e *Extraction) Advance(next State) {
	e.mu.Lock()
	prev := e.state
	e.state = next
	e.mu.Unlock()
	log.Debug().Str("extraction_id", e.ID.String()).Str("from", prev.String()).Str("to", next.String()).Msg("extraction state transition")
}

// CheckContext converts a cancelled or deadline-exceeded context into
// the appropriate Category, or returns nil if ctx is still live. Call
// this at the top of each lifecycle stage before doing any I/O.
func (e *Extraction) CheckContext() error {
	select {
	case <-e.Ctx.Done():
		if errors.Is(e.Ctx.Err(), context.DeadlineExceeded) {
			e.Advance(Failed)
			return Wrap(Timeout, e.Ctx.Err(), "extraction deadline exceeded")
		}
		e.Advance(Failed)
		return Wrap(Cancelled, e.Ctx.Err(), "extraction cancelled")
	default:
		return nil
	}
}

// Fail records a terminal failure and returns err unchanged, so
// orchestrators can write `return nil, ex.Fail(err)`.
func (e *Extraction) Fail(err error) error {
	e.Advance(Failed)
	log.Debug().Str("extraction_id", e.ID.String()).Err(err).Msg("extraction failed")
	return err
}

// Finish records successful completion.
func (e *Extraction) Finish() {
	e.Advance(Complete)
}
