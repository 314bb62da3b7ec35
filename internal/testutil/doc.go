// Package testutil contains helper builders and recorders used across tests
// to reduce boilerplate when scripting model streams, building conversation
// history and capturing emitted events. They are not intended for
// production usage.
package testutil
