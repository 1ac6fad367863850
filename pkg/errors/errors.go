package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/diwise/halgraph/pkg/hal"
)

// ErrContract marks developer errors: misuse of the declarative resource
// contract. They are deterministic and never worth retrying.
var ErrContract = fmt.Errorf("resource contract violation")

var ErrNotFound = fmt.Errorf("not found")
var ErrTransport = fmt.Errorf("transport error")
var ErrRequest = fmt.Errorf("request error")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrInternal = fmt.Errorf("internal error")
var ErrForbidden = fmt.Errorf("forbidden")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewContractError(format string, args ...any) error {
	return &myError{
		msg:    fmt.Sprintf(format, args...),
		target: ErrContract,
	}
}

func NewNotFoundError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotFound,
	}
}

func NewForbiddenError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrForbidden,
	}
}

// TransportError is returned when a resource could not be fetched. It keeps
// the status code (0 when no response was received), the URI that was
// requested and, when the upstream answered with an error document, that
// document so that its cause chain can be passed on.
type TransportError struct {
	StatusCode int
	URI        string
	Body       *hal.Document
	Cause      error
}

func NewTransportError(statusCode int, uri string, cause error) *TransportError {
	return &TransportError{
		StatusCode: statusCode,
		URI:        uri,
		Cause:      cause,
	}
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("failed to fetch %s", e.URI)

	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status code %d)", msg, e.StatusCode)
	}

	if e.Body != nil {
		if upstream, ok := e.Body.State()["message"].(string); ok && upstream != "" {
			msg = fmt.Sprintf("%s: %s", msg, upstream)
		}
	} else if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause.Error())
	}

	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func (e *TransportError) Is(target error) bool {
	if target == ErrTransport {
		return true
	}

	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}

func IsDeveloperError(err error) bool {
	return errors.Is(err, ErrContract)
}

func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NewErrorFromErrorDocument converts an error response into a TransportError,
// keeping the error document (if the body could be decoded as one) for later
// rendering of the cause chain.
func NewErrorFromErrorDocument(code int, uri string, contentType string, body []byte) *TransportError {
	te := NewTransportError(code, uri, nil)

	if len(body) == 0 {
		te.Cause = fmt.Errorf("upstream returned status code %d without a body (%w)", code, ErrBadResponse)
		return te
	}

	doc, err := hal.NewDocumentFromJSON(body)
	if err != nil {
		te.Cause = fmt.Errorf("failed to decode error response with content-type %q: %s (%w)", contentType, err.Error(), ErrBadResponse)
		return te
	}

	te.Body = doc

	return te
}
