// Package working implements the working memory tier.
//
// The working tier holds the raw recent turns of each active session in a
// fast expiring store. It is the only tier whose unavailability is fatal
// for a request, since without it there is no session continuity.
//
// The production implementation is RedisStore (Redis lists with RPUSH and
// per-append EXPIRE). MemoryStore provides the same semantics in-process
// for tests.
package working
