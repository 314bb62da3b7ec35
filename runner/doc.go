// Package runner drives agent runs for chat sessions.
//
// The Runner is the chat handler behind every transport: it persists the
// user's message, creates the assistant message up front, registers the run
// in the task registry, and executes the agent in its own goroutine. Each
// event the agent emits is first committed to the session store and then
// forwarded to the client's Sender. A failing Sender (a dropped connection)
// never stops the run nor skips persistence, so a client that reconnects
// finds the complete conversation in the store.
//
// # Envelope events
//
// Besides the agent's own events the runner sends transport-level envelopes:
//   - user_message_saved once the user's message is committed
//   - start when the run begins
//   - end, error or cancelled when it finishes
package runner
