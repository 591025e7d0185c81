// Package audit provides the internal audit event model, sinks, and the
// asynchronous dispatcher used by the engine. Events are fire-and-forget:
// the dispatcher buffers and drops under backpressure rather than ever
// blocking a flow transition.
package audit
