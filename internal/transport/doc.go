// Package transport connects to the workflow server.
//
// Client speaks the graphql-transport-ws protocol over a gorilla/websocket
// connection and implements subscription.Stream: every "next" message of
// the deltas subscription is decoded into a deltas.Batch and handed to the
// observer. Mutations (hold, release, stop) go over plain HTTP POST.
//
// There is no reconnect or retry. A broken connection is reported once
// through the observer's Error callback; the user reloads.
package transport
