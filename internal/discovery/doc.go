// Package discovery advertises and finds r2k event servers over mDNS.
//
// An event server started with "r2k serve" registers a "_r2k._tcp"
// service whose TXT records name the reader it streams and the WebSocket
// path. Scanner browses for those services.
//
// # Usage Example
//
//	// Advertise an event server on port 8080
//	adv, err := discovery.Advertise("dock-door", 8080, discovery.TXT{Reader: "dock-door"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	// Find servers for 5 seconds
//	services, err := discovery.NewScanner().Scan(ctx)
//	for _, svc := range services {
//	    fmt.Println(svc.EventsURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Servers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
