// Package client wires the synchronization subsystem into one Client.
//
// A Client owns the connection manager, chunk tracker, loader, pixel
// batcher, dispatcher and heartbeat, and runs the four long-lived tasks
// (reconnect loop, pixel sender, network listener, heartbeat) in one
// errgroup. Renderers talk to it through UpdateViewport, Paint and Erase.
package client
