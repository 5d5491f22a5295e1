package pipeline

import (
	"fmt"
	"net/http"

	"github.com/docstore/docstore-go/credential"
)

// AuthPolicy authorizes each attempt with the client's credential. It sits
// inside the retry policy so that retried attempts are re-signed with a
// fresh date.
type AuthPolicy struct {
	Cred credential.Credential
}

func (p AuthPolicy) Do(req *Request, next Next) (*http.Response, error) {
	if err := p.Cred.Authorize(req.Request, req.Method, req.ResourceType, req.ResourceLink); err != nil {
		return nil, fmt.Errorf("authorize request: %w", err)
	}
	return next(req)
}
