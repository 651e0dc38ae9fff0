// Package dispatch implements the Dispatcher of component 9: a
// bounded FIFO alert queue, rate-limited single-consumer fan-out to a
// Sink.
package dispatch

// Sink is the external collaborator the core dispatches to. The
// notification transport itself — chat bot, webhook, email — is out
// of scope (spec §1); the core only needs this shape.
type Sink interface {
	Send(recipient, text string) error
	Whitelist() []string
}
