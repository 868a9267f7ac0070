// Package http exposes the tuition scheduler over JSON.
//
// The router serves the following endpoints:
//   - GET /healthz: pings the database. Returns {"status":"ok"} or 503.
//   - GET /users/{userID}/students: {"students":[...]} ordered by last name.
//   - POST /users/{userID}/students: creates (201) or updates (200) a student from a
//     profile.Student body and answers {"success":true,"student":{...}}.
//   - GET /users/{userID}/students/{studentID}, DELETE /users/{userID}/students/{studentID}.
//   - PUT /users/{userID}/students/{studentID}/availability: replaces the weekly
//     availability. Body: {"availability":{"monday":[...],...}}.
//   - GET /users/{userID}/students/{studentID}/layout?day=monday&grid_start=5&ppm=1:
//     positioned bubbles for one day, own activities merged with the tuitions of every
//     subject of the student. See layoutDTO in student_handler.go.
//   - GET /subjects/{subjectID}/timetable: {"tuitions":[{"day","start","end","subject"}]}.
//   - POST /subjects/{subjectID}/timetable: schedules a tuition. Body: {"day","start","end"}.
//   - DELETE /tuitions/{tuitionID}.
//
// Failures answer {"success":false,"error":"...","errors":{field:message}}. Validation
// failures use 422, unknown resources 404, conflicts 409 and rate limiting 429.
package http
