package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/tuition-scheduler/internal/application"
	"github.com/example/tuition-scheduler/internal/persistence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// TuitionServiceDeps captures dependencies for constructing a tuition service.
type TuitionServiceDeps struct {
	Tuitions persistence.TuitionRepository
	// Cache defaults to an in-memory cache driven by the factory clock.
	Cache  application.TimetableCache
	Logger *slog.Logger
}

// NewTuitionService builds a tuition service using the factory clock and ids.
func (f *ServiceFactory) NewTuitionService(deps TuitionServiceDeps) *application.TuitionService {
	cache := deps.Cache
	if cache == nil {
		cache = application.NewMemoryTimetableCache(time.Minute, 0, f.Clock.NowFunc())
	}
	return application.NewTuitionServiceWithLogger(
		deps.Tuitions,
		cache,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// StudentServiceDeps captures dependencies for constructing a student service.
type StudentServiceDeps struct {
	Students persistence.StudentRepository
	Lessons  application.LessonSource
	Logger   *slog.Logger
}

// NewStudentService builds a student service using the factory clock and ids.
func (f *ServiceFactory) NewStudentService(deps StudentServiceDeps) *application.StudentService {
	return application.NewStudentServiceWithLogger(
		deps.Students,
		deps.Lessons,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// Services is a wired pair of services over one harness.
type Services struct {
	Students *application.StudentService
	Tuitions *application.TuitionService
}

// NewServices wires both services to the harness repositories.
func (f *ServiceFactory) NewServices(h *SQLiteHarness) Services {
	tuitions := f.NewTuitionService(TuitionServiceDeps{Tuitions: h.Tuitions})
	students := f.NewStudentService(StudentServiceDeps{Students: h.Students, Lessons: tuitions})
	return Services{Students: students, Tuitions: tuitions}
}
