// Package realtime fans request row changes out to the clients watching an owner's queue.
//
// # Brokers
//
// A [Broker] accepts committed [models.ChangeEvent] values and delivers them to every
// [Subscription] registered for the event's owner. [Hub] keeps subscribers in process;
// [RedisBroker] relays events through Redis pub/sub so several server processes share one stream.
//
// Delivery is at-least-once. A subscriber that cannot keep up is evicted: its event channel
// is closed and it is expected to resubscribe and fetch a fresh snapshot.
//
// # Transport
//
// [Handler] exposes a broker over a websocket at /realtime?owner_id=. Every connection starts
// with a SUBSCRIBED acknowledgement, followed by one JSON encoded event per message.
//
// [WSChannel] is the matching client. It reconnects with backoff and reports every
// reconnect so callers can resync. [LocalChannel] offers the same contract over an
// in-process broker.
package realtime
