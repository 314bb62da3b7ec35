// Package model defines the provider-agnostic streaming abstraction the
// agent loop consumes, together with helpers for tests.
//
// Core goals:
//   - A single streaming interface (StreamSource) yielding text fragments and
//     raw tool-call deltas exactly as providers emit them
//   - A normalized function-calling schema (ToolDefinition)
//   - Deterministic scripted sources for tests (ScriptedSource)
//
// Providers (OpenAI, Anthropic, gollm) live in subpackages and implement
// StreamSource so the loop stays decoupled from vendor SDKs.
package model
