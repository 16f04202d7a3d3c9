// Package client talks to the GophVault backend.
//
// GRPCClient dials lazily on first use, attaches the device access token to
// every call and maps failures onto sentinel errors:
//
//   - ErrUnavailable: the backend could not be reached or did not answer in
//     time. The connection is discarded and the next call dials again; the
//     failed call itself is never retried.
//   - ErrUnauthorized: the token was missing, invalid or expired, or the
//     device lacks the required profile.
//   - typed outcomes (version conflict, not found, enrollment conflicts) come
//     back as the matching internal/common sentinels.
package client
