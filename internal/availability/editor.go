// Package availability implements the weekly availability editor: an in-memory week of
// activities with add, edit, delete and week-wide "set all" operations.
//
// Without a Persister the editor mutates its local copy only (wizard mode). With a Persister
// (live mode) every change is first sent to the backend and applied locally only after the
// backend accepted it.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/example/tuition-scheduler/internal/logging"
	"github.com/example/tuition-scheduler/internal/timetable"
)

// State is the editor's modal state.
type State int

const (
	Viewing State = iota
	AddingActivity
	EditingActivity
	BulkSetting
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case AddingActivity:
		return "adding_activity"
	case EditingActivity:
		return "editing_activity"
	case BulkSetting:
		return "bulk_setting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Ref identifies an activity within a day. A non-empty ID takes precedence over Index.
type Ref struct {
	Index int
	ID    string
}

// At references the activity at position i of a day.
func At(i int) Ref { return Ref{Index: i} }

// ByID references a persisted activity by its identifier.
func ByID(id string) Ref { return Ref{Index: -1, ID: id} }

// Target describes what the current modal state is working on.
type Target struct {
	Day  timetable.Day
	Ref  Ref
	Type timetable.ActivityType
}

// Persister stores a whole week for the owner and returns it as stored, including any ids
// the store assigned. Used in live mode.
type Persister interface {
	ReplaceAvailability(ctx context.Context, ownerID string, week timetable.Week) (timetable.Week, error)
}

// StatusKind classifies status messages.
type StatusKind string

const (
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Notifier presents short status messages to the user.
type Notifier interface {
	Status(kind StatusKind, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind StatusKind, message string)

// Status calls f.
func (f NotifierFunc) Status(kind StatusKind, message string) { f(kind, message) }

// Options configures an Editor. Nil Policy means timetable.DefaultPolicy.
type Options struct {
	OwnerID   string
	Persister Persister
	Policy    *timetable.Policy
	Notifier  Notifier
	Logger    *slog.Logger
}

// Editor owns one entity's week of availability.
type Editor struct {
	mu     sync.Mutex
	week   timetable.Week
	state  State
	target Target

	busy atomic.Bool

	ownerID   string
	persister Persister
	policy    timetable.Policy
	notifier  Notifier
	logger    *slog.Logger
}

// New creates an editor over a deep copy of week, starting in Viewing.
func New(week timetable.Week, opts Options) *Editor {
	policy := timetable.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		week:      week.Clone(),
		state:     Viewing,
		ownerID:   opts.OwnerID,
		persister: opts.Persister,
		policy:    policy,
		notifier:  opts.Notifier,
		logger:    logger.With("component", "availability_editor", "owner_id", opts.OwnerID),
	}
}

// Live reports whether changes are sent to the backend.
func (e *Editor) Live() bool {
	return e.persister != nil
}

// Busy reports whether a mutation is in flight. Callers disable their controls meanwhile.
func (e *Editor) Busy() bool {
	return e.busy.Load()
}

// Week returns a deep copy of the current week.
func (e *Editor) Week() timetable.Week {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.week.Clone()
}

// Day returns a copy of the activities recorded for d.
func (e *Editor) Day(d timetable.Day) []timetable.Activity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.week.Activities(d)
}

// State returns the modal state and its target.
func (e *Editor) State() (State, Target) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.target
}

// Policy returns the exclusion policy applied by SetAllOfType.
func (e *Editor) Policy() timetable.Policy {
	return e.policy
}

// Layout merges the day's availability with its lessons and lays them out on grid.
func (e *Editor) Layout(d timetable.Day, grid timetable.Grid, lessons []timetable.Lesson) []timetable.Bubble {
	e.mu.Lock()
	blocks := timetable.MergeDay(e.week, d, lessons)
	e.mu.Unlock()
	return grid.LayoutDay(blocks, e.logger)
}

// BeginAdd opens the add form for an empty slot on d.
func (e *Editor) BeginAdd(d timetable.Day) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %d", timetable.ErrInvalidDay, int(d))
	}
	return e.transition(AddingActivity, Target{Day: d})
}

// BeginEdit opens the edit form for an existing activity. School and Sleep are locked and
// rejected with a ValidationError.
func (e *Editor) BeginEdit(d timetable.Day, ref Ref) (timetable.Activity, error) {
	e.mu.Lock()
	if e.state != Viewing {
		state := e.state
		e.mu.Unlock()
		return timetable.Activity{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, EditingActivity)
	}
	idx, err := resolve(e.week, d, ref)
	if err != nil {
		e.mu.Unlock()
		return timetable.Activity{}, err
	}
	activity := e.week[d][idx]
	vErr := checkSingleEdit(activity.Type)
	if !vErr.HasErrors() {
		e.state = EditingActivity
		e.target = Target{Day: d, Ref: Ref{Index: idx, ID: activity.ID}, Type: activity.Type}
	}
	e.mu.Unlock()

	if vErr.HasErrors() {
		e.notify(StatusError, vErr.FieldErrors["type"])
		return timetable.Activity{}, vErr
	}
	return activity, nil
}

// BeginBulk opens the "set all" form for type t.
func (e *Editor) BeginBulk(t timetable.ActivityType) error {
	if !t.Editable() {
		return fmt.Errorf("%w: %q", timetable.ErrInvalidActivityType, t)
	}
	return e.transition(BulkSetting, Target{Type: t})
}

// Cancel closes any open form. It never fails.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Viewing
	e.target = Target{}
}

func (e *Editor) transition(to State, target Target) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Viewing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.state, to)
	}
	e.state = to
	e.target = target
	return nil
}

// AddActivity appends an activity to day d. Overlapping activities are accepted.
func (e *Editor) AddActivity(ctx context.Context, d timetable.Day, t timetable.ActivityType, start, end timetable.Clock) (timetable.Activity, error) {
	activity, err := timetable.NewActivity(d, t, start, end)
	if err != nil {
		return timetable.Activity{}, err
	}
	pos := -1
	err = e.apply(ctx, "add_activity", "Activity added", AddingActivity, func(week *timetable.Week) error {
		pos = len(week[d])
		week[d] = append(week[d], activity)
		return nil
	})
	if err != nil {
		return timetable.Activity{}, err
	}

	// In live mode the stored copy carries the id assigned by the backend.
	e.mu.Lock()
	if pos < len(e.week[d]) {
		activity = e.week[d][pos]
	}
	e.mu.Unlock()
	return activity, nil
}

// EditActivity replaces the start and end of an existing activity in place.
func (e *Editor) EditActivity(ctx context.Context, d timetable.Day, ref Ref, start, end timetable.Clock) error {
	span, err := timetable.NewSpan(start, end)
	if err != nil {
		return err
	}
	return e.apply(ctx, "edit_activity", "Activity updated", EditingActivity, func(week *timetable.Week) error {
		idx, err := resolve(*week, d, ref)
		if err != nil {
			return err
		}
		if vErr := checkSingleEdit(week[d][idx].Type); vErr.HasErrors() {
			return vErr
		}
		week[d][idx].Span = span
		return nil
	})
}

// DeleteActivity removes an activity from day d.
func (e *Editor) DeleteActivity(ctx context.Context, d timetable.Day, ref Ref) error {
	return e.apply(ctx, "delete_activity", "Activity deleted", EditingActivity, func(week *timetable.Week) error {
		idx, err := resolve(*week, d, ref)
		if err != nil {
			return err
		}
		week[d] = append(week[d][:idx:idx], week[d][idx+1:]...)
		return nil
	})
}

// SetAllOfType replaces every activity of type t with one t activity per allowed day.
// The new week is staged and swapped in only when every day succeeded.
func (e *Editor) SetAllOfType(ctx context.Context, t timetable.ActivityType, start, end timetable.Clock) error {
	if !t.Editable() {
		return fmt.Errorf("%w: %q", timetable.ErrInvalidActivityType, t)
	}
	message := "All " + t.Label() + " activities updated"
	return e.apply(ctx, "set_all_of_type", message, BulkSetting, func(week *timetable.Week) error {
		for _, d := range timetable.Days() {
			kept := make([]timetable.Activity, 0, len(week[d])+1)
			for _, a := range week[d] {
				if a.Type != t {
					kept = append(kept, a)
				}
			}
			if e.policy.Allows(t, d) {
				activity, err := timetable.NewActivity(d, t, start, end)
				if err != nil {
					return fmt.Errorf("%s: %w", d, err)
				}
				kept = append(kept, activity)
			}
			week[d] = kept
		}
		return nil
	})
}

// apply runs mutate on a staged copy of the week, persists it in live mode and swaps it in.
// The state must be Viewing or from; on success the editor returns to Viewing.
func (e *Editor) apply(ctx context.Context, op, success string, from State, mutate func(*timetable.Week) error) (err error) {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.busy.Store(false)

	logger := logging.Resolve(ctx, e.logger).With("operation", op)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "availability change rejected", "error", err)
		}
	}()

	e.mu.Lock()
	state := e.state
	staged := e.week.Clone()
	e.mu.Unlock()

	if state != Viewing && state != from {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, state)
	}

	if err = mutate(&staged); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			e.notify(StatusError, err.Error())
		}
		return err
	}

	if e.persister != nil {
		stored, perr := e.persister.ReplaceAvailability(ctx, e.ownerID, staged)
		if perr != nil {
			err = &PersistenceError{Op: op, Err: perr}
			logger.ErrorContext(ctx, "failed to persist availability", "error", perr)
			e.notify(StatusError, "Could not save changes: "+perr.Error())
			return err
		}
		staged = stored
	}

	e.mu.Lock()
	e.week = staged
	e.state = Viewing
	e.target = Target{}
	e.mu.Unlock()

	logger.DebugContext(ctx, "availability changed", "activities", staged.Len())
	e.notify(StatusSuccess, success)
	return nil
}

func (e *Editor) notify(kind StatusKind, message string) {
	if e.notifier != nil {
		e.notifier.Status(kind, message)
	}
}

func resolve(week timetable.Week, d timetable.Day, ref Ref) (int, error) {
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", timetable.ErrInvalidDay, int(d))
	}
	if ref.ID != "" {
		for i, a := range week[d] {
			if a.ID == ref.ID {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: id %q on %s", ErrActivityNotFound, ref.ID, d)
	}
	if ref.Index < 0 || ref.Index >= len(week[d]) {
		return 0, fmt.Errorf("%w: index %d on %s", ErrActivityNotFound, ref.Index, d)
	}
	return ref.Index, nil
}

func checkSingleEdit(t timetable.ActivityType) *ValidationError {
	vErr := &ValidationError{}
	if t.BulkOnly() {
		vErr.add("type", fmt.Sprintf("%s activities can only be changed with Set All %s", t.Label(), t.Label()))
	} else if !t.Editable() {
		vErr.add("type", fmt.Sprintf("%s activities are read-only", t.Label()))
	}
	return vErr
}
