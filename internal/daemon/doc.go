// Package daemon runs the long-lived michatta process.
//
// It holds a flock-based single-instance lock, opens the viewed-item store,
// performs the one-time legacy migration at startup, and serves the storage
// facade over a small HTTP API on the configured bind address
// (POST /api/storage, GET /api/status). When an API token is configured every
// request must carry it as a bearer token.
//
// Keep storage semantics in the viewed and facade packages; the daemon only
// owns startup, shutdown and transport.
package daemon
