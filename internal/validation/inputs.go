package validation

// StudentInput holds the basic student fields. The wizard and the backend validate against
// the same rules so a draft that passes step 1 is accepted on save.
type StudentInput struct {
	FirstName string `json:"first_name" validate:"notblank,max=80"`
	LastName  string `json:"last_name" validate:"notblank,max=80"`
	Grade     int    `json:"grade" validate:"gte=0,lte=20"`
}

// SubjectInput holds the validated fields of a subject.
type SubjectInput struct {
	Name           string `json:"name" validate:"notblank,max=80"`
	LessonsPerWeek int    `json:"lessons_per_week" validate:"gte=1,lte=14"`
}
