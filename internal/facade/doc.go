// Package facade is the message boundary collaborators use to reach the
// viewed-item store.
//
// A call names a method and carries JSON params; every call returns the
// same envelope with a success flag and one optional payload field. Params
// are checked against a per-method JSON schema before dispatch. Unknown
// methods and malformed params produce failure envelopes, never panics, and
// the cache and database handle are never exposed.
package facade
