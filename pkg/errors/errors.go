package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// FailureMessage is the fixed top-level message of every error response.
const FailureMessage = "Failed to perform operation."

// Error is an application error rendered as an HTTP response.
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	Detail  string `json:"errorMsg"`
	Kind    string `json:"kind,omitempty"`
	Step    string `json:"step,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given status code and user-facing detail.
func New(code int, detail string, err error) *Error {
	return &Error{
		Code:    code,
		Message: FailureMessage,
		Detail:  detail,
		Err:     err,
	}
}

// WithKind sets the error classification and failing step.
func (e *Error) WithKind(kind, step string) *Error {
	e.Kind = kind
	e.Step = step
	return e
}

func BadRequest(detail string, err error) *Error {
	return New(http.StatusBadRequest, detail, err).WithKind("InvalidRequestError", "")
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// ErrorMiddleware renders the last error attached to the gin context. Errors
// that are not *Error become a 500 without exposing the cause.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *Error
		if !stderrors.As(err, &appErr) {
			appErr = Internal(err)
		}
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
