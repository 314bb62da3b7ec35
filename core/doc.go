// Package core provides the foundational domain types shared by the agent
// execution engine:
//
//   - Events (the ordered, transient records a run hands to its caller)
//   - Messages (role tagged conversation history fed back to the model)
//   - Stream items (text fragments and tool-call deltas produced by a model)
//
// The package holds no behavior beyond construction and encoding helpers so
// that the agent loop, the persistence layer and the transport can share a
// vocabulary without importing each other.
package core
