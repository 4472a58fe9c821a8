// Package sessions defines the per-connection view that capability code sees.
// A session carries the negotiated protocol version, the principal the
// process runs as, the client's self-reported identity and handles to the
// optional capabilities the client advertised during initialize.
//
// # Capabilities
//
// A Session may expose optional capability interfaces (sampling, roots). Each
// accessor returns (cap, ok); ok is false when the client did not advertise
// the capability. Calls made through a capability travel back over the same
// connection as server-initiated JSON-RPC requests and block until the client
// responds, the context ends or the connection closes:
//
//	if roots, ok := sess.GetRootsCapability(); ok {
//	    res, err := roots.ListRoots(ctx)
//	    ...
//	}
package sessions
