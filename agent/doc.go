// Package agent implements the reasoning/acting loop that drives a streaming
// model through bounded iterations.
//
// Each iteration streams one model turn through an Accumulator, which turns
// text fragments and partial tool-call deltas into ordered events:
//
//	chunk*, action_streaming, action_args_chunk*, action, observation
//
// At most one tool call (the lowest call index of the turn) is executed per
// iteration; its observation is appended to the conversation and the next
// iteration begins. A turn without tool calls ends the run.
//
// Cancellation is cooperative: the run's context is checked at iteration
// boundaries and before a tool call is surfaced.
package agent
