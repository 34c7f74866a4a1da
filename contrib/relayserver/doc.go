// Package relayserver is a reference relay for flatplan collaboration.
//
// It stores share blobs and fans websocket broadcasts and presence out to the
// clients subscribed to a channel, speaking the frame protocol of
// pkg/relay/wire. Clients connect with pkg/relay/wsrelay.
//
// The server keeps no document state of its own: a share is an opaque blob,
// and channel traffic is forwarded as is. Shares live in memory or in
// PostgreSQL (see store/postgres).
//
//	flatplan-relay run
//	flatplan-relay -store postgres -postgres-dsn postgres://localhost/flatplan migrate
package relayserver
