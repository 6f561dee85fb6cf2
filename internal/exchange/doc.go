// Package exchange defines the request/response descriptors that flow through
// the interception pipeline. A Request is immutable once constructed and is
// both the local router's dispatch key and the cache's identity key; a
// Response is always a complete snapshot with its body fully read, so cache
// hits, handler output and network responses can be copied freely without
// consuming a shared stream.
package exchange
