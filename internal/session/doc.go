// Package session owns the lifecycle of the single feed connection:
// connect and authenticate, send with offline queueing, decode inbound
// frames, heartbeat liveness with latency measurement, and
// exponential-backoff reconnection with jitter.
//
// All mutable session state sits behind one mutex; timer callbacks and
// the socket read loop never race on the same counters. A generation
// counter invalidates goroutines belonging to a superseded connection,
// so an in-flight connect abandoned by Disconnect is ignored when it
// eventually resolves.
package session
