package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MasterKey signs requests with the account's shared key. The signature is an
// HMAC-SHA256 over the lowercased verb, the lowercased resource type, the
// resource link and the lowercased RFC1123 request date, each terminated by a
// newline, with two trailing empty lines. The resource link keeps its
// original casing.
type MasterKey struct {
	key []byte

	// now is swapped in tests to pin the signed date.
	now func() time.Time
}

// NewMasterKey decodes the base64 account key.
func NewMasterKey(base64Key string) (*MasterKey, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("credential: master key is not valid base64: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("credential: master key is empty")
	}
	return &MasterKey{key: key, now: time.Now}, nil
}

// Authorize stamps x-ms-date and the signed Authorization header.
func (m *MasterKey) Authorize(req *http.Request, verb, resourceType, resourceLink string) error {
	date := strings.ToLower(m.now().UTC().Format(http.TimeFormat))
	req.Header.Set(headerDate, date)
	sig := m.sign(verb, resourceType, resourceLink, date)
	req.Header.Set(headerAuthorization, url.QueryEscape("type=master&ver=1.0&sig="+sig))
	return nil
}

func (m *MasterKey) sign(verb, resourceType, resourceLink, date string) string {
	payload := strings.ToLower(verb) + "\n" +
		strings.ToLower(resourceType) + "\n" +
		resourceLink + "\n" +
		date + "\n" +
		"" + "\n"
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
