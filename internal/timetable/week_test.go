package timetable

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalizeAvailability(t *testing.T) {
	t.Parallel()

	raw := map[string][]RawActivity{
		"monday": {
			{Type: "sport", Start: "14:00", End: "15:30"},
			{Type: "sport", Start: "", End: "15:30"},
			{Type: "school", Start: "08:00", End: "15:00", ID: "a-1"},
		},
		"Saturday": {
			{Type: "sleep", Start: "22:00", End: "06:00"},
			{Type: "tuition", Start: "10:00", End: "11:00"},
			{Type: "nap", Start: "13:00", End: "14:00"},
		},
		"caturday": {
			{Type: "other", Start: "10:00", End: "11:00"},
		},
	}

	week, problems := NormalizeAvailability(raw, nil)

	if len(problems) != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", len(problems), problems)
	}
	for _, p := range problems {
		var malformed *MalformedDataError
		if !errors.As(p, &malformed) {
			t.Fatalf("unexpected problem type %T", p)
		}
	}

	monday := week.Activities(Monday)
	if len(monday) != 2 {
		t.Fatalf("expected 2 monday activities, got %d", len(monday))
	}
	if monday[0].Type != Sport || monday[1].Type != School || monday[1].ID != "a-1" {
		t.Fatalf("insertion order not preserved: %+v", monday)
	}
	for _, a := range monday {
		if a.Day != Monday {
			t.Fatalf("activity not tagged with its day: %+v", a)
		}
	}
	if got := week.Activities(Saturday); len(got) != 1 || got[0].Type != Sleep {
		t.Fatalf("saturday = %+v", got)
	}
	if week.Len() != 3 {
		t.Fatalf("Len() = %d", week.Len())
	}
}

func TestWeek_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	var week Week
	week[Sunday] = []Activity{{Type: Sleep, Day: Sunday, Span: Span{Start: MustClock("22:00"), End: MustClock("06:00")}}}
	week[Thursday] = []Activity{{ID: "x", Type: Other, Day: Thursday, Span: Span{Start: MustClock("17:00"), End: MustClock("18:00")}}}

	payload, err := json.Marshal(week)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Week
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Len() != 2 || decoded[Thursday][0].ID != "x" || decoded[Sunday][0].Span != week[Sunday][0].Span {
		t.Fatalf("decoded = %+v", decoded)
	}

	if err := json.Unmarshal([]byte(`{"monday":[{"type":"sport","start":"9:00"}]}`), &decoded); err == nil {
		t.Fatalf("expected malformed payload to be rejected")
	}
}

func TestWeek_CloneIsDeep(t *testing.T) {
	t.Parallel()

	var week Week
	week[Monday] = []Activity{{Type: Sport, Day: Monday, Span: Span{Start: MustClock("14:00"), End: MustClock("15:00")}}}

	clone := week.Clone()
	clone[Monday][0].End = MustClock("16:00")
	clone[Monday] = append(clone[Monday], Activity{Type: Other, Day: Monday})

	if len(week[Monday]) != 1 || week[Monday][0].End != MustClock("15:00") {
		t.Fatalf("original week mutated: %+v", week[Monday])
	}
}

func TestNormalizeTimetableAndMerge(t *testing.T) {
	t.Parallel()

	lessons, problems := NormalizeTimetable([]RawLesson{
		{Day: "monday", Start: "16:00", End: "17:00", Subject: "Maths"},
		{Day: "noday", Start: "16:00", End: "17:00", Subject: "Physics"},
		{Day: "tuesday", Start: "16:00", Subject: "Chemistry"},
		{Day: "tuesday", Start: "18:00", End: "19:00", Subject: "Biology"},
	}, nil)
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", problems)
	}
	if len(lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(lessons))
	}

	var week Week
	week[Monday] = []Activity{{Type: Sport, Day: Monday, Span: Span{Start: MustClock("14:00"), End: MustClock("15:30")}}}

	blocks := MergeDay(week, Monday, lessons)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Kind() != Sport || blocks[1].Kind() != Tuition {
		t.Fatalf("unexpected merge order: %v, %v", blocks[0].Kind(), blocks[1].Kind())
	}
	if lesson, ok := blocks[1].(Lesson); !ok || lesson.Subject != "Maths" {
		t.Fatalf("expected maths lesson, got %#v", blocks[1])
	}
	if got := MergeDay(week, Day(12), lessons); got != nil {
		t.Fatalf("expected nil for invalid day")
	}
}

func TestNewActivity(t *testing.T) {
	t.Parallel()

	if _, err := NewActivity(Monday, Tuition, MustClock("10:00"), MustClock("11:00")); !errors.Is(err, ErrInvalidActivityType) {
		t.Fatalf("expected tuition to be rejected, got %v", err)
	}
	if _, err := NewActivity(Day(8), Sport, MustClock("10:00"), MustClock("11:00")); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected invalid day, got %v", err)
	}
	if _, err := NewActivity(Monday, Sport, Clock(2000), MustClock("11:00")); !errors.Is(err, ErrInvalidClock) {
		t.Fatalf("expected invalid clock, got %v", err)
	}
}

func TestPolicy(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	for _, d := range Days() {
		wantSchool := d != Friday && d != Saturday
		if policy.Allows(School, d) != wantSchool {
			t.Fatalf("School on %s allowed = %v", d, !wantSchool)
		}
		if !policy.Allows(Sleep, d) {
			t.Fatalf("Sleep excluded on %s", d)
		}
	}
	excluded := policy.Excluded(School)
	if len(excluded) != 2 || excluded[0] != Saturday || excluded[1] != Friday {
		t.Fatalf("Excluded(School) = %v", excluded)
	}
}
