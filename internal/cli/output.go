package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"strata/pkg/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The store rejected the operation
	ExitCommandError = 2 // Bad arguments, configuration or backend
)

// ExitError is an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Anything that is not an
// ExitError is a store rejection.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope every command prints.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failure. Kind is the domain error class
// (version_conflict, not_found, ...).
type ResponseError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OutputFormatter writes Responses as indented JSON.
type OutputFormatter struct {
	Writer io.Writer
}

// Success prints data.
func (f *OutputFormatter) Success(data any) error {
	return f.write(Response{Status: "ok", Data: data})
}

// Error prints err with its domain kind.
func (f *OutputFormatter) Error(err error) error {
	kind := domain.ErrorKind(err)
	if GetExitCode(err) == ExitCommandError {
		kind = "command"
	}
	return f.write(Response{Status: "error", Error: &ResponseError{Kind: kind, Message: err.Error()}})
}

func (f *OutputFormatter) write(r Response) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ResourceView is the printed form of a resource snapshot.
type ResourceView struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	Deleted   bool      `json:"deleted"`
	DeletedAt string    `json:"deleted_at,omitempty"`
}

func viewOf(r domain.Resource) ResourceView {
	v := ResourceView{ID: r.ID(), Type: r.Type().String(), Version: r.CurrentVersion().String()}
	if at, deleted := r.DeletedAt(); deleted {
		v.Deleted = true
		v.DeletedAt = at.String()
	}
	return v
}

// LinkView is the printed form of a link.
type LinkView struct {
	Source    ResourceView `json:"source"`
	Type      string       `json:"type"`
	Target    ResourceView `json:"target"`
	CreatedAt string       `json:"created_at"`
	Live      bool         `json:"live"`
	DeletedAt string       `json:"deleted_at,omitempty"`
}

func linkViews(links []domain.Link) []LinkView {
	out := make([]LinkView, 0, len(links))
	for _, l := range links {
		v := LinkView{
			Source:    viewOf(l.Source()),
			Type:      string(l.Type()),
			Target:    viewOf(l.Target()),
			CreatedAt: l.CreatedAt().String(),
			Live:      l.IsLive(),
		}
		if at, dead := l.DeletedAt(); dead {
			v.DeletedAt = at.String()
		}
		out = append(out, v)
	}
	return out
}

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid id %q", arg), err)
	}
	return id, nil
}
