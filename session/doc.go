// Package session persists the conversation of a chat session: user and
// assistant messages plus the tool actions an agent run performed.
//
// Store is the persistence contract. InMemoryStore is a volatile
// implementation for tests and demo servers; the sqlite sub-package provides
// a durable one. Recorder applies the events of a single agent run to a
// Store as they arrive, committing after every event, so that the last
// successfully applied increment survives a crash or a dropped client.
package session
