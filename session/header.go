package session

import (
	"sort"
	"strings"
)

const (
	pairSeparator      = ","
	partitionSeparator = ":"
)

// ParseHeader decodes a session-token header value, a comma-separated list
// of partitionKeyRangeID:token pairs, into a per-partition token map. It is
// strict: any malformed pair fails the whole parse. An empty value yields an
// empty map; it is what a first write to a fresh partition returns.
func ParseHeader(value string) (map[string]Token, error) {
	if value == "" {
		return map[string]Token{}, nil
	}
	pairs := strings.Split(value, pairSeparator)
	tokens := make(map[string]Token, len(pairs))
	for _, pair := range pairs {
		rangeID, raw, ok := strings.Cut(pair, partitionSeparator)
		if !ok || rangeID == "" {
			return nil, &ParseError{Value: pair, Reason: "pair is not partitionKeyRangeID:token"}
		}
		token, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		tokens[rangeID] = token
	}
	return tokens, nil
}

// ParseHeaderBestEffort decodes like ParseHeader but silently drops malformed
// pairs instead of failing. Dropping a pair downgrades that one partition to
// the service's default consistency for the next request; it never corrupts
// state that was already recorded. This is the documented default policy of
// the Container because observed service behavior tolerates partial headers;
// use WithStrictHeaderParsing to fail instead.
func ParseHeaderBestEffort(value string) map[string]Token {
	if value == "" {
		return map[string]Token{}
	}
	pairs := strings.Split(value, pairSeparator)
	tokens := make(map[string]Token, len(pairs))
	for _, pair := range pairs {
		rangeID, raw, ok := strings.Cut(pair, partitionSeparator)
		if !ok || rangeID == "" {
			continue
		}
		token, err := Parse(raw)
		if err != nil {
			continue
		}
		tokens[rangeID] = token
	}
	return tokens
}

// FormatHeader renders a per-partition token map in the wire form consumed by
// request headers. Pairs are ordered by partition key range id so that equal
// maps always render identically. An empty map renders as "".
func FormatHeader(tokens map[string]Token) string {
	if len(tokens) == 0 {
		return ""
	}
	rangeIDs := make([]string, 0, len(tokens))
	for rangeID := range tokens {
		rangeIDs = append(rangeIDs, rangeID)
	}
	sort.Strings(rangeIDs)
	var sb strings.Builder
	for i, rangeID := range rangeIDs {
		if i > 0 {
			sb.WriteString(pairSeparator)
		}
		sb.WriteString(rangeID)
		sb.WriteString(partitionSeparator)
		sb.WriteString(tokens[rangeID].String())
	}
	return sb.String()
}
