// Package ldssebus connects replicas in different processes through a sync hub, using a
// Server-Sent Events stream to receive updates and HTTP POST requests to send them.
//
//	config := syncstore.Config{
//	    Bus: ldssebus.Bus().BaseURI("https://hub.example.com"),
//	}
//
// Each replica's updates are posted by a single goroutine, so the hub receives and relays them in
// the order they were sent. If the stream is interrupted, the client reconnects with backoff and the
// hub replays the updates it missed, as long as they are still in the hub's replay buffer. Delivery
// is best-effort: updates queued while the hub is unreachable are dropped.
//
// The hub side is provided by Hub, which the syncstore-hub command serves.
package ldssebus
