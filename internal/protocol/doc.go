// Package protocol implements the bridge engine: request/response correlation
// and method dispatch over a one-way text channel.
//
// The Engine handles:
//   - Sending fire-and-forget envelopes
//   - Sending correlated requests with unique callback ids and a timeout
//   - Matching inbound replies against the pending-call table
//   - Invoking locally registered handlers for inbound method calls and
//     replying for asynchronous ones
//
// Every pending call ends exactly once. Whoever removes the entry from the
// pending table (the reply, the timer, a cancelled Request, or Stop) decides
// the outcome; later contenders find nothing and do nothing.
//
// Example usage:
//
//	engine := protocol.NewEngine(endpoint, &config.Options{
//	    Target:   peer,
//	    Handlers: handler.Registry{"echo": echo},
//	})
//	defer engine.Stop()
//
//	unsubscribe := endpoint.Subscribe(func(evt config.MessageEvent) {
//	    _ = engine.HandleFrame(ctx, evt)
//	})
//	defer unsubscribe()
//
//	data, err := engine.Request(ctx, envelope.Envelope{Method: "ping"}, 5*time.Second)
package protocol
