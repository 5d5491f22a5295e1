package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/docstore/docstore-go/internal/pipeline"
)

// ErrNoMorePages is returned by Pager.NextPage after the last page.
var ErrNoMorePages = errors.New("docstore: no more pages")

// Error is a failure reported by the service. The activity id correlates the
// failure with server-side diagnostics.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	ActivityID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("docstore: service returned %d (%s): %s [activity %s]",
		e.StatusCode, e.Code, e.Message, e.ActivityID)
}

// IsNotFound reports whether err is a service 404.
func IsNotFound(err error) bool { return isStatus(err, http.StatusNotFound) }

// IsConflict reports whether err is a service 409, e.g. a create with an id
// that already exists.
func IsConflict(err error) bool { return isStatus(err, http.StatusConflict) }

// IsPreconditionFailed reports whether err is a service 412, e.g. an etag
// mismatch on a conditional replace.
func IsPreconditionFailed(err error) bool { return isStatus(err, http.StatusPreconditionFailed) }

func isStatus(err error, status int) bool {
	var se *Error
	return errors.As(err, &se) && se.StatusCode == status
}

const maxErrorBody = 1 << 20

func newServiceError(resp *http.Response) error {
	defer resp.Body.Close()
	se := &Error{
		StatusCode: resp.StatusCode,
		ActivityID: resp.Header.Get(pipeline.HeaderActivityID),
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil {
			se.Code = payload.Code
			se.Message = payload.Message
		}
	}
	if se.Code == "" {
		se.Code = http.StatusText(resp.StatusCode)
	}
	return se
}
