// Package discovery advertises and finds arrayacq servers with mDNS.
//
// A server that is listening registers itself as "_arrayacq._tcp" in the
// "local." domain, with TXT records carrying the protocol version. Clients
// can browse for the service instead of being given an address.
//
// # Advertising
//
//	adv := &discovery.Advertiser{Text: map[string]string{"protocol": "1006"}}
//	stop, err := adv.Advertise(55500)
//	if err != nil {
//	    return err
//	}
//	defer stop()
//
// # Browsing
//
//	servers, err := discovery.NewScanner().Scan(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Servers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
