// Package errs defines common error variables used across the application.
package errs

import (
	"errors"
	"fmt"
)

// Error classes. Typed errors below match one of these through errors.Is.
var (
	// ErrValidation indicates caller-correctable input, e.g. an empty URL.
	ErrValidation = errors.New("validation failed")
	// ErrService indicates that the remote service rejected a request.
	ErrService = errors.New("service error")
	// ErrNetwork indicates a transport failure talking to the remote service.
	ErrNetwork = errors.New("network error")
	// ErrJob indicates that the remote service reported a failure for a running job.
	ErrJob = errors.New("job failed")
	// ErrRetrieval indicates that the finished artifact could not be fetched or saved.
	ErrRetrieval = errors.New("retrieval failed")
)

// Session controller errors.
var (
	// ErrJobActive indicates that a job is already starting or polling.
	ErrJobActive = errors.New("a download is already in progress")
	// ErrProgressUnavailable indicates that too many consecutive progress checks failed.
	ErrProgressUnavailable = errors.New("progress unavailable")
	// ErrJobTimeout indicates that the job ran past its overall deadline.
	ErrJobTimeout = errors.New("job timed out")
	// ErrControllerClosed indicates that the controller was closed.
	ErrControllerClosed = errors.New("controller is closed")
	// ErrSessionIDEmpty indicates that the service returned no session id.
	ErrSessionIDEmpty = errors.New("session_id is empty")
)

// Request errors.
var (
	// ErrInvalidRequestBody indicates that the request body is invalid or cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
	// ErrInvalidURL indicates that the URL field in the request is empty.
	ErrInvalidURL = errors.New("invalid url field")
)

// Storage errors.
var (
	// ErrInvalidFilename indicates that no usable filename could be derived.
	ErrInvalidFilename = errors.New("invalid filename")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no healthy proxy is available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ServiceError is a non-success response from the remote service.
// Message is shown to the user verbatim.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service returned status %d", e.StatusCode)
	}

	return e.Message
}

// Is reports whether target is ErrService.
func (e *ServiceError) Is(target error) bool { return target == ErrService }

// NetworkError wraps a transport failure for the named operation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// JobError is a failure reported by the remote service while a job was running.
type JobError struct {
	Message string
}

func (e *JobError) Error() string {
	return e.Message
}

// Is reports whether target is ErrJob.
func (e *JobError) Is(target error) bool { return target == ErrJob }

// RetrievalError wraps a failure fetching or saving the artifact of a completed session.
type RetrievalError struct {
	SessionID string
	Err       error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.SessionID, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRetrieval.
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

// Message returns the user-facing text of err. Service and job errors carry
// the service's own wording; everything else falls back to fallback.
func Message(err error, fallback string) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}

	var jobErr *JobError
	if errors.As(err, &jobErr) && jobErr.Message != "" {
		return jobErr.Message
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Error()
	}

	return fallback
}
