// Package server streams reader events to WebSocket clients.
//
// A Server fans every asynchronous event of a reader connection (tag reads,
// round summaries, antenna and inventory errors) out to all connected
// clients as JSON text messages:
//
//	{"type":"tag","time":"2026-10-16T09:12:01.5Z","reader":"dock-door",
//	 "event":{"command":"RealTimeInventory","tag":{"antenna":1,"frequency_mhz":902,
//	 "rssi":-58,"epc":"E2003412B80201234567890A","pc":12288,"crc":"not_checked"}}}
//
// # Endpoints
//
//   - /events: WebSocket upgrade, server-to-client only
//   - /healthz: liveness probe
//   - /status: JSON counters for the hub and, when configured, the reader link
//
// # Usage Example
//
//	srv := server.New(&server.Config{Listen: ":8080", Reader: "dock-door"})
//	go srv.Pump(ctx, conn.Events())
//	if err := srv.ListenAndServe(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Slow Clients
//
// Each client has a bounded send queue. Messages for a client whose queue is
// full are dropped and counted; the reader flow is never blocked by a slow
// consumer.
//
// # TLS
//
// Setting CertPath and KeyPath serves wss:// with TLS 1.2 or later.
package server
