// Package echoserver hosts a small HTTP/WebSocket echo service on the nbio
// runtime.
//
// The server binds one listening TCP socket, absorbs blocking accepts on a
// dedicated goroutine, and registers one task per accepted connection. Each
// connection task is a hand-rolled poll state machine composing the
// runtime's network futures: read the request, write the routed response,
// and for upgraded connections echo WebSocket frames until the peer closes.
//
// Routes:
//
//	GET /    the embedded echo test page
//	GET /ws  WebSocket upgrade, then frame echo
//
// Anything else is answered 404. Request bodies are not supported, nor are
// WebSocket fragmentation or extensions.
package echoserver
