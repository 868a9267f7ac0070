// Package wizard drives the four step student registration flow: basic info, subjects,
// availability and review. A Wizard is created when the flow opens and dropped when it
// closes; nothing is persisted until Finish succeeds.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/example/tuition-scheduler/internal/availability"
	"github.com/example/tuition-scheduler/internal/logging"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
	"github.com/example/tuition-scheduler/internal/validation"
)

// Step is a position in the flow.
type Step int

const (
	BasicInfo Step = iota + 1
	Subjects
	Availability
	Review
	Finished
)

func (s Step) String() string {
	switch s {
	case BasicInfo:
		return "basic_info"
	case Subjects:
		return "subjects"
	case Availability:
		return "availability"
	case Review:
		return "review"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	// ErrUseFinish is returned by Next on the review step.
	ErrUseFinish = errors.New("wizard: use Finish on the review step")
	// ErrNotAtReview is returned by Finish before the review step is reached.
	ErrNotAtReview = errors.New("wizard: finish is only available on the review step")
	// ErrClosed is returned for any change after the wizard finished.
	ErrClosed = errors.New("wizard: already finished")
	// ErrBusy is returned while a save is in flight.
	ErrBusy = errors.New("wizard: save already in progress")
	// ErrNoSaver is returned by Finish when no Saver was configured.
	ErrNoSaver = errors.New("wizard: no saver configured")
	// ErrDuplicateSubject is returned when a subject with the same name already exists.
	ErrDuplicateSubject = errors.New("wizard: duplicate subject")
	// ErrSubjectNotFound is returned when a subject name does not resolve.
	ErrSubjectNotFound = errors.New("wizard: subject not found")
)

// Saver stores a finished draft. The backend creates or updates depending on whether the
// id is already known.
type Saver interface {
	SaveStudent(ctx context.Context, userID string, student profile.Student) (profile.Student, error)
}

// Options configures a Wizard.
type Options struct {
	Saver       Saver
	Policy      *timetable.Policy
	IDGenerator func() string
	Notifier    availability.Notifier
	OnFinished  func(profile.Student)
	Logger      *slog.Logger
}

// BasicInfoForm holds the raw step 1 input. It is committed into the draft only after it
// validates.
type BasicInfoForm struct {
	FirstName string `json:"first_name" validate:"notblank"`
	LastName  string `json:"last_name" validate:"notblank"`
	Grade     string `json:"grade" validate:"notblank,number"`
}

func (f BasicInfoForm) trimmed() BasicInfoForm {
	return BasicInfoForm{
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Grade:     strings.TrimSpace(f.Grade),
	}
}

// Wizard is the state of one open registration flow.
type Wizard struct {
	mu       sync.Mutex
	userID   string
	step     Step
	draft    profile.Student
	form     BasicInfoForm
	dayIndex int
	editing  bool
	editor   *availability.Editor

	saving atomic.Bool

	saver       Saver
	idGenerator func() string
	onFinished  func(profile.Student)
	notifier    availability.Notifier
	logger      *slog.Logger
}

// New opens the wizard for a new student with a default week.
func New(userID string, opts Options) *Wizard {
	opts = withDefaults(opts)
	draft := profile.Student{
		ID:           opts.IDGenerator(),
		Subjects:     []profile.Subject{},
		Availability: DefaultAvailability(*opts.Policy),
	}
	return open(userID, draft, BasicInfoForm{}, false, opts)
}

// Edit opens the wizard over a deep copy of an existing student.
func Edit(userID string, existing profile.Student, opts Options) *Wizard {
	opts = withDefaults(opts)
	draft := existing.Clone()
	if draft.ID == "" {
		draft.ID = opts.IDGenerator()
	}
	form := BasicInfoForm{
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
		Grade:     strconv.Itoa(draft.Grade),
	}
	return open(userID, draft, form, true, opts)
}

func withDefaults(opts Options) Options {
	if opts.IDGenerator == nil {
		opts.IDGenerator = uuid.NewString
	}
	if opts.Policy == nil {
		policy := timetable.DefaultPolicy()
		opts.Policy = &policy
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

func open(userID string, draft profile.Student, form BasicInfoForm, editing bool, opts Options) *Wizard {
	logger := opts.Logger.With("component", "wizard", "user_id", userID, "student_id", draft.ID)
	return &Wizard{
		userID:  userID,
		step:    BasicInfo,
		draft:   draft,
		form:    form,
		editing: editing,
		editor: availability.New(draft.Availability, availability.Options{
			OwnerID:  draft.ID,
			Policy:   opts.Policy,
			Notifier: opts.Notifier,
			Logger:   opts.Logger,
		}),
		saver:       opts.Saver,
		idGenerator: opts.IDGenerator,
		onFinished:  opts.OnFinished,
		notifier:    opts.Notifier,
		logger:      logger,
	}
}

// DefaultAvailability seeds a week with Sleep 22:00-06:00 every day and School 08:00-15:00
// on every day the policy allows it.
func DefaultAvailability(policy timetable.Policy) timetable.Week {
	var week timetable.Week
	sleep := timetable.Span{Start: timetable.MustClock("22:00"), End: timetable.MustClock("06:00")}
	school := timetable.Span{Start: timetable.MustClock("08:00"), End: timetable.MustClock("15:00")}
	for _, d := range timetable.Days() {
		if policy.Allows(timetable.School, d) {
			week[d] = append(week[d], timetable.Activity{Type: timetable.School, Day: d, Span: school})
		}
		week[d] = append(week[d], timetable.Activity{Type: timetable.Sleep, Day: d, Span: sleep})
	}
	return week
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Editing reports whether the draft came from an existing student.
func (w *Wizard) Editing() bool {
	return w.editing
}

// Editor returns the availability editor used on step 3.
func (w *Wizard) Editor() *availability.Editor {
	return w.editor
}

// Draft returns a deep copy of the draft including the editor's current week.
func (w *Wizard) Draft() profile.Student {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

func (w *Wizard) snapshot() profile.Student {
	draft := w.draft.Clone()
	draft.Availability = w.editor.Week()
	return draft
}

// Form returns the pending step 1 input.
func (w *Wizard) Form() BasicInfoForm {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// SetBasicInfo records step 1 input without committing it.
func (w *Wizard) SetBasicInfo(firstName, lastName, grade string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == Finished {
		return ErrClosed
	}
	w.form = BasicInfoForm{FirstName: firstName, LastName: lastName, Grade: grade}
	return nil
}

// Next validates the current step and moves forward.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.saving.Load() {
		return ErrBusy
	}

	switch w.step {
	case BasicInfo:
		if err := w.commitBasicInfo(); err != nil {
			w.notify(availability.StatusError, err.Error())
			return err
		}
	case Review:
		return ErrUseFinish
	case Finished:
		return ErrClosed
	}
	w.editor.Cancel()
	w.step++
	return nil
}

// Previous moves back one step without validation. It does nothing on the first step and
// returns ErrBusy while Finish is saving.
func (w *Wizard) Previous() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.saving.Load() {
		return ErrBusy
	}
	if w.step <= BasicInfo || w.step == Finished {
		return nil
	}
	w.editor.Cancel()
	w.step--
	return nil
}

func (w *Wizard) commitBasicInfo() error {
	form := w.form.trimmed()
	fields, err := validation.Struct(form)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return &availability.ValidationError{FieldErrors: fields}
	}
	grade, err := strconv.Atoi(form.Grade)
	if err != nil {
		return &availability.ValidationError{FieldErrors: map[string]string{"grade": "must be a whole number"}}
	}

	input := validation.StudentInput{FirstName: form.FirstName, LastName: form.LastName, Grade: grade}
	if fields, err = validation.Struct(input); err != nil {
		return err
	}
	if len(fields) > 0 {
		return &availability.ValidationError{FieldErrors: fields}
	}
	w.draft.FirstName = input.FirstName
	w.draft.LastName = input.LastName
	w.draft.Grade = input.Grade
	return nil
}

// AddSubject appends a subject with an empty share list. Names are unique ignoring case.
func (w *Wizard) AddSubject(name string, lessonsPerWeek int) (profile.Subject, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == Finished {
		return profile.Subject{}, ErrClosed
	}

	input := validation.SubjectInput{Name: name, LessonsPerWeek: lessonsPerWeek}
	fields, err := validation.Struct(input)
	if err != nil {
		return profile.Subject{}, err
	}
	if len(fields) > 0 {
		return profile.Subject{}, &availability.ValidationError{FieldErrors: fields}
	}
	if w.draft.FindSubject(name) >= 0 {
		return profile.Subject{}, fmt.Errorf("%w: %q", ErrDuplicateSubject, strings.TrimSpace(name))
	}

	subject := profile.Subject{
		ID:             w.idGenerator(),
		Name:           strings.TrimSpace(name),
		LessonsPerWeek: lessonsPerWeek,
		SharedWith:     []string{},
	}
	w.draft.Subjects = append(w.draft.Subjects, subject)
	return subject.Clone(), nil
}

// RemoveSubject deletes the subject with the given name.
func (w *Wizard) RemoveSubject(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == Finished {
		return ErrClosed
	}
	idx := w.draft.FindSubject(name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrSubjectNotFound, name)
	}
	w.draft.Subjects = append(w.draft.Subjects[:idx:idx], w.draft.Subjects[idx+1:]...)
	return nil
}

// ShareSubject replaces the list of other students sharing a subject's lessons.
func (w *Wizard) ShareSubject(name string, otherIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == Finished {
		return ErrClosed
	}
	idx := w.draft.FindSubject(name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrSubjectNotFound, name)
	}

	seen := make(map[string]struct{}, len(otherIDs))
	shared := make([]string, 0, len(otherIDs))
	for _, id := range otherIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == w.draft.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		shared = append(shared, id)
	}
	w.draft.Subjects[idx].SharedWith = shared
	return nil
}

// CurrentDay is the day shown on the availability step.
func (w *Wizard) CurrentDay() timetable.Day {
	w.mu.Lock()
	defer w.mu.Unlock()
	return timetable.Day(w.dayIndex)
}

// NextDay moves the availability view one day forward, wrapping after Friday.
func (w *Wizard) NextDay() timetable.Day {
	return w.rotateDay(1)
}

// PrevDay moves the availability view one day back, wrapping before Saturday.
func (w *Wizard) PrevDay() timetable.Day {
	return w.rotateDay(-1)
}

func (w *Wizard) rotateDay(direction int) timetable.Day {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dayIndex = timetable.RotateDay(w.dayIndex, direction)
	return timetable.Day(w.dayIndex)
}

// Finish saves the draft. On success the wizard is Finished and OnFinished is called with
// the stored student; on failure it stays on the review step with the draft intact.
func (w *Wizard) Finish(ctx context.Context) (student profile.Student, err error) {
	if !w.saving.CompareAndSwap(false, true) {
		return profile.Student{}, ErrBusy
	}
	defer w.saving.Store(false)

	w.mu.Lock()
	step := w.step
	draft := w.snapshot()
	w.mu.Unlock()

	switch {
	case step == Finished:
		return profile.Student{}, ErrClosed
	case step != Review:
		return profile.Student{}, ErrNotAtReview
	case w.saver == nil:
		return profile.Student{}, ErrNoSaver
	}

	logger := logging.Resolve(ctx, w.logger).With("operation", "Finish", "editing", w.editing)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save student", "error", err)
			return
		}
		logger.InfoContext(ctx, "student saved", "subjects", len(student.Subjects), "activities", student.Availability.Len())
	}()

	saved, saveErr := w.saver.SaveStudent(ctx, w.userID, draft)
	if saveErr != nil {
		err = &availability.PersistenceError{Op: "save_student", Err: saveErr}
		w.notify(availability.StatusError, "Could not save student: "+saveErr.Error())
		return profile.Student{}, err
	}
	if saved.ID == "" {
		saved = draft
	}

	w.mu.Lock()
	w.draft = saved.Clone()
	w.step = Finished
	w.mu.Unlock()

	w.notify(availability.StatusSuccess, "Student saved")
	if w.onFinished != nil {
		w.onFinished(saved.Clone())
	}
	student = saved
	return student, nil
}

func (w *Wizard) notify(kind availability.StatusKind, message string) {
	if w.notifier != nil {
		w.notifier.Status(kind, message)
	}
}
