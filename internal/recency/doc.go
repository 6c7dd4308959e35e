// Package recency provides a fixed-capacity key/value map with
// least-recently-used eviction.
//
// The cache is a non-owning accelerator: it never holds data that is not also
// recorded elsewhere, so callers may Clear it at any time and pay only a
// latency cost while it refills. Reads are not pure: Get promotes the key to
// most-recently-used. Has only tests membership and leaves order untouched.
package recency
