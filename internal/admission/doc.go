// Package admission implements the rate limiter / admission gate.
//
// The gate is consulted at three points:
//   - connection attempt: concurrent connections per identity
//   - inbound message: messages per rate window per identity
//   - inbound payload: byte size against the configured maximum
//
// Each denial carries a distinct code. Counters live in a shared Redis
// store so limits hold across instances; when Redis is unreachable the
// gate degrades to an in-process approximation instead of failing open
// or rejecting traffic outright.
package admission
