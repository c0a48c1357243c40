// Package queue implements the venue request queue: song requests, owner review and the
// owner's single playing request.
//
// [Service] validates input, reads catalog metadata before writing anything, persists through a
// [repositories.RequestStore] and publishes one [models.ChangeEvent] per changed row on a
// [realtime.Broker]. Publishing happens after the write has committed; a failed publish is logged
// and the operation still succeeds, since clients resync from a snapshot when they reconnect.
package queue
