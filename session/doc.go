// Package session implements the client-side bookkeeping behind session
// consistency: the guarantee that a client observes at least the effects of
// its own prior writes.
//
// Every partition key range of a collection carries an independent write
// watermark, expressed on the wire as a vector session token
// (version#globalLSN, optionally followed by per-region #region=localLSN
// entries). After each mutating request the service returns the new watermark
// in the x-ms-session-token response header as a comma-separated list of
// partitionKeyRangeID:token pairs; the client echoes the merged watermarks on
// subsequent requests so the service can serve reads that are at least as
// recent as the caller's own writes.
//
// Token merging is a join on a join-semilattice: commutative, associative and
// idempotent. That makes the Container safe under concurrent, out-of-order
// response arrival: absorbing responses in any order converges on the same
// per-partition maximum.
//
// The Container is the in-memory tracker owned by a single client instance.
// The Store interface abstracts the same operations behind a context-aware
// surface so that session state can be shared across processes; see the
// redisstore subpackage for a distributed implementation and sessionstoretest
// for the conformance suite both implementations run.
package session
