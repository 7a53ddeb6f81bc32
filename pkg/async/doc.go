// Package async provides safe goroutine execution for background work.
//
// Warden schedules two kinds of background tasks: audit trail appends
// fired after a mutation commits, and the bootstrap run at cold start.
// Both must outlive the request that triggered them, so callers pass
// context.Background() rather than the request context.
package async
