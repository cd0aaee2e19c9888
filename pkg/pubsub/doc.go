// Package pubsub tracks the active subscriptions of a JSON-RPC
// publish/subscribe connection.
//
// Every subscription is identified two ways. The local id is the
// Keccak-256 hash of the subscribe request's serialized params: derived
// purely from content, it survives reconnects and is shared by logically
// identical subscribe calls. The server id is whatever identifier the
// server assigned on the current connection; it changes every time the
// subscription is re-established and is meaningless outside that
// connection.
//
// # Manager
//
// Manager owns one record per distinct params hash, holding the canonical
// request (for re-issuing) and the write end of the subscription's
// notification channel. It maintains a one-to-one mapping between local
// and server ids, routes incoming notifications by server id, and mints
// reader handles.
//
// Duplicate subscribes converge: Upsert with params that already have a
// record rotates the server id instead of creating a second channel, so
// every consumer of those params reads the same feed.
//
// # Handles
//
// RawSubscription yields raw payload bytes. Subscription adds a typed view
// with three decode policies: discard mismatches (Recv), tag them
// (RecvAny), or surface them as errors (RecvResult). Handles are cheap to
// create and free to abandon; dropping one never disturbs the
// subscription.
//
// # Reconnects
//
// On disconnect the client calls DropServerIDs: records, channels and
// consumer handles all survive, only the per-connection server ids are
// forgotten. Re-subscribing with the stored requests and upserting the
// fresh server ids resumes delivery into the same channels. Notifications
// whose server id is unknown (late frames for rotated or removed
// subscriptions) are dropped.
package pubsub
