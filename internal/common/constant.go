// Package common contains shared constants and sentinel errors used across
// venuetrace components.
package common

// BundleTagHeaderName is the response header carrying the opaque server
// cursor for incremental problematic-event fetches. It is consumed
// case-insensitively.
const BundleTagHeaderName = "x-key-bundle-tag"

// SignatureHeaderName carries the detached signature of a feed payload.
const SignatureHeaderName = "x-signature"
