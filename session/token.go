package session

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	segmentSeparator        = "#"
	regionProgressSeparator = "="
)

// ErrMalformedToken is the sentinel wrapped by every token parse failure.
var ErrMalformedToken = errors.New("session: malformed session token")

// ParseError describes why a wire-format session token could not be parsed.
// An unparsable token means the client cannot trust its consistency state for
// the response that carried it, so callers treat it as fatal for that
// response rather than attempting recovery.
type ParseError struct {
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("session: cannot parse token %q: %s", e.Value, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformedToken }

// Token is a vector session token: a per-partition monotonic watermark over
// the partition's write history. It combines a version (bumped when the
// partition's replica set changes) with a global logical sequence number and,
// in multi-region accounts, one local LSN per region.
//
// Tokens are immutable values. Merge returns a new token; nothing ever
// lowers a stored watermark in place.
type Token struct {
	version   int64
	globalLSN int64
	localLSN  map[uint32]int64
}

// NewToken builds a token from its components. It is mostly useful in tests;
// production tokens arrive over the wire and go through Parse.
func NewToken(version, globalLSN int64) Token {
	return Token{version: version, globalLSN: globalLSN}
}

// Version returns the replica-set version component.
func (t Token) Version() int64 { return t.version }

// GlobalLSN returns the global logical sequence number component.
func (t Token) GlobalLSN() int64 { return t.globalLSN }

// IsZero reports whether t is the zero token, i.e. no watermark at all.
func (t Token) IsZero() bool {
	return t.version == 0 && t.globalLSN == 0 && len(t.localLSN) == 0
}

// Parse decodes the wire form "version#globalLSN[#region=localLSN...]". Every
// numeric component is non-negative on the wire; negative values are rejected
// as malformed.
func Parse(s string) (Token, error) {
	if s == "" {
		return Token{}, &ParseError{Value: s, Reason: "empty token"}
	}
	segments := strings.Split(s, segmentSeparator)
	if len(segments) < 2 {
		return Token{}, &ParseError{Value: s, Reason: "missing global LSN segment"}
	}
	version, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || version < 0 {
		return Token{}, &ParseError{Value: s, Reason: "version is not a non-negative integer"}
	}
	globalLSN, err := strconv.ParseInt(segments[1], 10, 64)
	if err != nil || globalLSN < 0 {
		return Token{}, &ParseError{Value: s, Reason: "global LSN is not a non-negative integer"}
	}
	t := Token{version: version, globalLSN: globalLSN}
	for _, seg := range segments[2:] {
		region, lsn, ok := strings.Cut(seg, regionProgressSeparator)
		if !ok {
			return Token{}, &ParseError{Value: s, Reason: "region progress segment without separator"}
		}
		regionID, err := strconv.ParseUint(region, 10, 32)
		if err != nil {
			return Token{}, &ParseError{Value: s, Reason: "region id is not an unsigned integer"}
		}
		localLSN, err := strconv.ParseInt(lsn, 10, 64)
		if err != nil || localLSN < 0 {
			return Token{}, &ParseError{Value: s, Reason: "local LSN is not a non-negative integer"}
		}
		if t.localLSN == nil {
			t.localLSN = make(map[uint32]int64, len(segments)-2)
		}
		t.localLSN[uint32(regionID)] = localLSN
	}
	return t, nil
}

// Merge returns the least token that dominates both t and other: the greater
// version wins outright, and between equal versions the result takes the
// componentwise maximum of the global LSN and of every region's local LSN.
// Merge is commutative, associative and idempotent, which is what lets a
// container absorb response tokens in any arrival order.
func (t Token) Merge(other Token) Token {
	if t.IsZero() {
		return other
	}
	if other.IsZero() {
		return t
	}
	hi, lo := t, other
	if other.version > t.version {
		hi, lo = other, t
	}
	if hi.version != lo.version {
		return hi
	}
	merged := Token{version: hi.version, globalLSN: hi.globalLSN}
	if lo.globalLSN > merged.globalLSN {
		merged.globalLSN = lo.globalLSN
	}
	if len(hi.localLSN) > 0 || len(lo.localLSN) > 0 {
		merged.localLSN = make(map[uint32]int64, len(hi.localLSN))
		for region, lsn := range hi.localLSN {
			merged.localLSN[region] = lsn
		}
		for region, lsn := range lo.localLSN {
			if cur, ok := merged.localLSN[region]; !ok || lsn > cur {
				merged.localLSN[region] = lsn
			}
		}
	}
	return merged
}

// Equal reports componentwise equality.
func (t Token) Equal(other Token) bool {
	if t.version != other.version || t.globalLSN != other.globalLSN {
		return false
	}
	if len(t.localLSN) != len(other.localLSN) {
		return false
	}
	for region, lsn := range t.localLSN {
		if other.localLSN[region] != lsn {
			return false
		}
	}
	return true
}

// String renders the wire form. It is the inverse of Parse: for any valid
// token, Parse(t.String()) yields a token Equal to t. Region segments are
// emitted in ascending region id order so the rendering is deterministic.
func (t Token) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(t.version, 10))
	sb.WriteString(segmentSeparator)
	sb.WriteString(strconv.FormatInt(t.globalLSN, 10))
	if len(t.localLSN) > 0 {
		regions := make([]uint32, 0, len(t.localLSN))
		for region := range t.localLSN {
			regions = append(regions, region)
		}
		sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })
		for _, region := range regions {
			sb.WriteString(segmentSeparator)
			sb.WriteString(strconv.FormatUint(uint64(region), 10))
			sb.WriteString(regionProgressSeparator)
			sb.WriteString(strconv.FormatInt(t.localLSN[region], 10))
		}
	}
	return sb.String()
}
