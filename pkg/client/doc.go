// Package client implements a JSON-RPC publish/subscribe client.
//
// Client multiplexes eth_subscribe subscriptions over one connection. It
// correlates subscribe and unsubscribe responses, routes subscription
// notifications into per-subscription broadcast channels, and
// re-establishes every active subscription when the connection is lost
// and a dialer is available.
//
// # Lifecycle
//
// Dial connects and returns a running client; New adopts an existing
// connection (no reconnect). Subscribe returns a RawSubscription handle;
// wrap it in pubsub.Typed for decoded payloads. Close shuts the client
// down and closes every subscription channel.
//
// # Reconnect
//
// On connection loss the client unbinds all server ids, fails in-flight
// calls, and dials once. Each stored subscribe request is re-issued
// verbatim and the fresh server ids rebind to the existing channels, so
// consumer handles keep working across the gap. Subscriptions whose
// re-subscribe fails are removed, so their consumers observe closure
// instead of a silent stall. If the dial fails, or no dialer was
// provided, every subscription closes.
package client
