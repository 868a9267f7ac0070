package persistence

import "time"

// Student is a stored student owned by a user, with its subjects and availability.
type Student struct {
	ID         string
	UserID     string
	FirstName  string
	LastName   string
	Grade      int
	Subjects   []Subject
	Activities []Activity
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Subject is a subject row. Position keeps the order chosen in the wizard.
type Subject struct {
	ID             string
	StudentID      string
	Name           string
	LessonsPerWeek int
	SharedWith     []string
	Position       int
}

// Activity is one availability entry. Day uses the Saturday-first index and times are
// minutes since midnight.
type Activity struct {
	ID          string
	StudentID   string
	Day         int
	Type        string
	StartMinute int
	EndMinute   int
	Position    int
}

// Tuition is a scheduled lesson of a subject.
type Tuition struct {
	ID          string
	SubjectID   string
	Subject     string
	Day         int
	StartMinute int
	EndMinute   int
	CreatedAt   time.Time
}
