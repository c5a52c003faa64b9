// Package websocket provides WebSocket transport for live validation progress.
//
// The websocket package implements:
//   - Channel-based subscriptions, one channel per batch
//   - Wildcard subscribers that follow every channel
//   - Non-blocking event publishing from worker goroutines
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all
// subscriptions. Only the Run goroutine touches the subscription table;
// connections, publishers and queries talk to it through channels. Each
// client connection has a read pump and a write pump.
//
// Message Protocol:
//
// Clients only listen. Outgoing messages are JSON objects:
//
//	{"channel": "3f2c...", "event": "file_validated", "data": {...FileReport}}
//	{"channel": "3f2c...", "event": "batch_complete", "data": {...BatchSummary}}
//	{"channel": "level_4.json", "event": "level_updated", "data": {...FileReport}}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("channel"))
//	})
//
//	hub.BroadcastEvent(batchID, websocket.EventFileValidated, report)
//
// Slow clients whose send buffer fills up are dropped, and BroadcastEvent
// drops events when the hub queue is full, so a batch never waits on a
// browser.
package websocket
