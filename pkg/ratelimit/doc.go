// Package ratelimit provides per-IP token-bucket rate limiting middleware for
// the Gin write endpoints, with automatic stale-entry cleanup.
package ratelimit
