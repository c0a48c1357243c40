// Package ui implements the venue owner's console using bubbletea's Elm architecture.
//
// The console shows one owner's queue as three tabs backed by a live [client.Store]:
//  1. [QueueView] : Approved requests in playback order, with the playing song marked
//  2. [PendingView] : Requests waiting for review
//  3. [RejectedView] : Rejected requests that can be reset
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Store changes flow through a channel that the model drains one message at a time, so realtime events redraw the
// lists without the store knowing about the UI.
//
// Keyboard navigation uses vim-style bindings (j/k, tab, a/x/r/p/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
