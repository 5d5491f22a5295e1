// Package resourceid builds and dissects resource links.
//
// A resource is addressable two ways: by name ("dbs/mydb/colls/mycoll/docs/x",
// built from user-supplied ids) or by resource id ("dbs/AQs3AA==/colls/
// AQs3AKwVXl0=/docs/..."), the server-assigned stable identifiers returned in
// _self links. Names can be recycled after a delete and recreate; rids never
// are, which is why session state is keyed by collection rid.
package resourceid

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Segment names of the resource hierarchy levels this client addresses.
const (
	SegmentDatabases   = "dbs"
	SegmentCollections = "colls"
	SegmentDocuments   = "docs"
)

// Server-assigned rids are base64 with fixed decoded widths per level.
const (
	databaseRidBytes   = 4
	collectionRidBytes = 8
)

var errInvalidID = errors.New("resourceid: invalid resource id")

// ValidateID rejects ids the service would refuse: empty, containing path or
// header metacharacters, or ending in whitespace.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", errInvalidID)
	}
	if strings.ContainsAny(id, "/\\?#") {
		return fmt.Errorf("%w: %q contains one of '/', '\\', '?', '#'", errInvalidID, id)
	}
	if strings.TrimRight(id, " ") != id {
		return fmt.Errorf("%w: %q ends with a space", errInvalidID, id)
	}
	return nil
}

// DatabasePath returns the name-based link of a database.
func DatabasePath(databaseID string) string {
	return SegmentDatabases + "/" + databaseID
}

// CollectionLink returns the name-based link of a collection.
func CollectionLink(databaseID, collectionID string) string {
	return DatabasePath(databaseID) + "/" + SegmentCollections + "/" + collectionID
}

// DocumentLink returns the name-based link of a document.
func DocumentLink(databaseID, collectionID, documentID string) string {
	return CollectionLink(databaseID, collectionID) + "/" + SegmentDocuments + "/" + documentID
}

// IsNameBased reports whether link addresses resources by name rather than by
// server-assigned rid. The distinction follows the link shape: in a rid link
// the segment after "dbs" is a base64 value decoding to exactly four bytes.
func IsNameBased(link string) bool {
	parts := split(link)
	if len(parts) < 2 || parts[0] != SegmentDatabases {
		return false
	}
	return !isRid(parts[1], databaseRidBytes)
}

// CollectionPath returns the link of the collection that owns link, whether
// link addresses the collection itself or a document under it. It returns ""
// when link does not reach collection depth (e.g. a database link).
func CollectionPath(link string) string {
	parts := split(link)
	if len(parts) < 4 || parts[0] != SegmentDatabases || parts[2] != SegmentCollections {
		return ""
	}
	return strings.Join(parts[:4], "/")
}

// CollectionRid extracts the collection rid from a rid-based link, typically
// a _self link carried in a response body. It fails when the link is
// name-based or does not reach collection depth.
func CollectionRid(selfLink string) (string, error) {
	parts := split(selfLink)
	if len(parts) < 4 || parts[0] != SegmentDatabases || parts[2] != SegmentCollections {
		return "", fmt.Errorf("resourceid: link %q has no collection segment", selfLink)
	}
	rid := parts[3]
	if !isRid(rid, collectionRidBytes) {
		return "", fmt.Errorf("resourceid: link %q is not rid-based", selfLink)
	}
	return rid, nil
}

func split(link string) []string {
	link = strings.Trim(link, "/")
	if link == "" {
		return nil
	}
	return strings.Split(link, "/")
}

func isRid(segment string, decodedLen int) bool {
	// Rids use the URL-unsafe alphabet and arrive padded.
	b, err := base64.StdEncoding.DecodeString(segment)
	return err == nil && len(b) == decodedLen
}
