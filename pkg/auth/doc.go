// Package auth provides pluggable credentials for outgoing vendor requests.
//
// A [Provider] stamps credentials onto the headers of each attempt. It is
// called once per attempt, so implementations that mint short-lived tokens
// can refresh them between retries. Implementations live in subpackages:
// noop (no credentials), apikey (static keys), jwt (self-signed service
// account tokens) and oauth (OAuth2 token sources).
package auth
