// Package apiclient talks to the tuition backend over JSON. It implements the availability
// editor's live-mode persister and the wizard's saver.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/tuition-scheduler/internal/availability"
	"github.com/example/tuition-scheduler/internal/logging"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
	"github.com/example/tuition-scheduler/internal/wizard"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("apiclient: resource not found")
	// ErrInvalidInput is returned for 400 and 422 responses.
	ErrInvalidInput = errors.New("apiclient: invalid input")
	// ErrConflict is returned for 409 responses.
	ErrConflict = errors.New("apiclient: conflict")
)

// APIError carries the status and message of a failed response.
type APIError struct {
	Status      int
	Message     string
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("apiclient: %d %s", e.Status, e.Message)
}

// Unwrap maps the status onto the package sentinels.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidInput
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// UserID owns every student the client reads or writes.
	UserID     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a typed client for the backend REST API.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
	logger  *slog.Logger
}

var (
	_ availability.Persister = (*Client)(nil)
	_ wizard.Saver           = (*Client)(nil)
)

// New validates the base URL and builds a client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: base,
		userID:  opts.UserID,
		http:    httpClient,
		logger:  logger.With("component", "apiclient"),
	}, nil
}

// FetchTimetable returns the raw tuition occurrences of a subject.
func (c *Client) FetchTimetable(ctx context.Context, subjectID string) ([]timetable.RawLesson, error) {
	var resp struct {
		Tuitions []timetable.RawLesson `json:"tuitions"`
	}
	if err := c.do(ctx, http.MethodGet, "/subjects/"+url.PathEscape(subjectID)+"/timetable", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tuitions, nil
}

// FetchStudent loads one student of the client's user. Malformed availability entries are
// logged and dropped.
func (c *Client) FetchStudent(ctx context.Context, studentID string) (profile.Student, error) {
	var resp studentEnvelope
	if err := c.do(ctx, http.MethodGet, c.studentPath(studentID), nil, &resp); err != nil {
		return profile.Student{}, err
	}
	return c.studentFromWire(ctx, resp.Student), nil
}

// FetchStudents lists the students of a user.
func (c *Client) FetchStudents(ctx context.Context, userID string) ([]profile.Student, error) {
	var resp struct {
		Students []studentWire `json:"students"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/students", nil, &resp); err != nil {
		return nil, err
	}
	students := make([]profile.Student, 0, len(resp.Students))
	for _, wire := range resp.Students {
		students = append(students, c.studentFromWire(ctx, wire))
	}
	return students, nil
}

// SaveStudent creates or updates a student and returns the stored version.
func (c *Client) SaveStudent(ctx context.Context, userID string, student profile.Student) (profile.Student, error) {
	var resp studentEnvelope
	if err := c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/students", student, &resp); err != nil {
		return profile.Student{}, err
	}
	return c.studentFromWire(ctx, resp.Student), nil
}

// DeleteStudent removes a student of the client's user.
func (c *Client) DeleteStudent(ctx context.Context, studentID string) error {
	return c.do(ctx, http.MethodDelete, c.studentPath(studentID), nil, nil)
}

// ReplaceAvailability stores the full weekly availability of a student and returns the week
// as stored, with server-assigned activity ids.
func (c *Client) ReplaceAvailability(ctx context.Context, studentID string, week timetable.Week) (timetable.Week, error) {
	body := struct {
		Availability timetable.Week `json:"availability"`
	}{Availability: week}
	var resp studentEnvelope
	if err := c.do(ctx, http.MethodPut, c.studentPath(studentID)+"/availability", body, &resp); err != nil {
		return timetable.Week{}, err
	}
	return c.studentFromWire(ctx, resp.Student).Availability, nil
}

func (c *Client) studentPath(studentID string) string {
	return "/users/" + url.PathEscape(c.userID) + "/students/" + url.PathEscape(studentID)
}

type studentEnvelope struct {
	Student studentWire `json:"student"`
}

// studentWire keeps availability in its raw day-keyed form so one bad entry does not fail
// the whole response. The outer Availability shadows the embedded one.
type studentWire struct {
	profile.Student
	Availability map[string][]timetable.RawActivity `json:"availability"`
}

func (c *Client) studentFromWire(ctx context.Context, wire studentWire) profile.Student {
	logger := logging.Resolve(ctx, c.logger).With("student_id", wire.ID)
	week, problems := timetable.NormalizeAvailability(wire.Availability, logger)
	if len(problems) > 0 {
		logger.WarnContext(ctx, "dropped malformed availability entries", "count", len(problems))
	}
	student := wire.Student
	student.Availability = week
	return student
}

type errorEnvelope struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	logger := logging.Resolve(ctx, c.logger).With("method", method, "path", path)
	started := time.Now()
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "api request failed", "error", err, "duration", time.Since(started))
			return
		}
		logger.DebugContext(ctx, "api request completed", "duration", time.Since(started))
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope errorEnvelope
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			if envelope.Error != "" {
				apiErr.Message = envelope.Error
			}
			apiErr.FieldErrors = envelope.Errors
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}
