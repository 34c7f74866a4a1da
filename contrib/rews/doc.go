// Package rews provides a relay that survives dropped connections.
//
// [Relay] wraps a relay connection, typically a [wsrelay.Client], and replaces
// it when it closes. After reconnecting it restores the state a collaboration
// session depends on:
//   - every channel subscription, delivering to the same handlers
//   - the presence tracked on each channel
//
// Basic usage:
//
//	r := rews.New(
//	    func(ctx context.Context) (*wsrelay.Client, error) {
//	        return wsrelay.Dial(ctx, "wss://relay.flatplan.app")
//	    },
//	    5*time.Second, // reconnection check interval
//	    log,
//	)
//	r.Retryer = rews.NewExponentialBackoffRetryer()
//
//	if err := r.Connect(ctx); err != nil {
//	    // the relay was unreachable after all retries
//	}
//	session := collab.New(collab.Config{Relay: r, Document: doc})
//
// Requests made while the connection is down fail with the underlying
// connection's error; the collaboration session reports them through its
// status.
//
// [wsrelay.Client]: https://pkg.go.dev/github.com/flatplan/flatplan.go/pkg/relay/wsrelay#Client
package rews
