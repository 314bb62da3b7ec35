// Package task tracks the agent run that is live for each chat session.
//
// A Registry holds at most one non-terminal Task per session. Registering a
// new run for a session that still has one running cancels the old run
// first, so a session never has two agents writing into it concurrently.
// Entries stay in the registry after they finish so that clients can query
// the final status; CleanupOld (or a janitor started with StartJanitor)
// reclaims them once they are old enough.
//
// Most callers use the process-wide registry returned by Default. Tests and
// embedders that want isolation construct their own with NewRegistry.
package task
