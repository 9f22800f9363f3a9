// Package addr implements the subset of the multiaddr string format the
// stream transport's dialer path needs: "/ip4/<dotted>/tcp/<port>". It is
// not a general multiaddr implementation: callers needing the full
// self-describing binary format should reach for a dedicated multiaddr
// module.
package addr

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// InvalidAddressError reports why a multiaddr string could not be parsed.
type InvalidAddressError struct {
	Addr   string
	Detail string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Addr, e.Detail)
}

// Addr is a parsed "/ip4/<dotted>/tcp/<port>" multiaddr.
type Addr struct {
	IP   net.IP
	Port uint16
}

// Parse parses a multiaddr string of the form "/ip4/<dotted>/tcp/<port>".
// Anything else yields an *InvalidAddressError.
func Parse(s string) (*Addr, error) {
	parts := strings.Split(s, "/")
	// strings.Split on a string that starts with '/' yields a leading "".
	if len(parts) != 5 || parts[0] != "" {
		return nil, &InvalidAddressError{Addr: s, Detail: "expected /ip4/<addr>/tcp/<port>"}
	}
	if parts[1] != "ip4" {
		return nil, &InvalidAddressError{Addr: s, Detail: fmt.Sprintf("unsupported protocol %q", parts[1])}
	}
	if parts[3] != "tcp" {
		return nil, &InvalidAddressError{Addr: s, Detail: fmt.Sprintf("unsupported protocol %q", parts[3])}
	}

	ip := net.ParseIP(parts[2]).To4()
	if ip == nil {
		return nil, &InvalidAddressError{Addr: s, Detail: fmt.Sprintf("invalid ip4 address %q", parts[2])}
	}

	port, err := strconv.ParseUint(parts[4], 10, 16)
	if err != nil {
		return nil, &InvalidAddressError{Addr: s, Detail: fmt.Sprintf("invalid port %q", parts[4])}
	}

	return &Addr{IP: ip, Port: uint16(port)}, nil
}

// String renders the multiaddr back to its canonical form.
func (a *Addr) String() string {
	return fmt.Sprintf("/ip4/%s/tcp/%d", a.IP.String(), a.Port)
}

// NetAddr returns the net.TCPAddr this multiaddr describes, suitable for
// net.Dialer.DialContext / net.Listen.
func (a *Addr) NetAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: a.IP, Port: int(a.Port)}
}

// FromNetAddr builds an Addr from a dialed/accepted net.Addr, for populating
// the metadata registry's addr_info entry.
func FromNetAddr(na net.Addr) (*Addr, error) {
	tcpAddr, ok := na.(*net.TCPAddr)
	if !ok {
		host, portStr, err := net.SplitHostPort(na.String())
		if err != nil {
			return nil, &InvalidAddressError{Addr: na.String(), Detail: err.Error()}
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, &InvalidAddressError{Addr: na.String(), Detail: err.Error()}
		}
		ip := net.ParseIP(host).To4()
		if ip == nil {
			return nil, &InvalidAddressError{Addr: na.String(), Detail: "not an ip4 address"}
		}
		return &Addr{IP: ip, Port: uint16(port)}, nil
	}

	ip4 := tcpAddr.IP.To4()
	if ip4 == nil {
		return nil, &InvalidAddressError{Addr: na.String(), Detail: "not an ip4 address"}
	}
	return &Addr{IP: ip4, Port: uint16(tcpAddr.Port)}, nil
}
