// Package utils holds small helpers shared across the server package:
// connection trace IDs, remote-address extraction for logging, and HELO
// domain syntax validation.
package utils

import (
	"fmt"
	"net"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/idna"
)

// GetIPFromAddr extracts the IP from a net.Addr, used to attach a remote
// address to structured log lines.
func GetIPFromAddr(addr net.Addr) (net.IP, error) {
	if addr == nil {
		return nil, fmt.Errorf("address is nil")
	}

	var ip net.IP
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip = a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			host = addr.String()
		}
		ip = net.ParseIP(host)
		if ip == nil {
			return nil, fmt.Errorf("unable to extract IP from address: %v", addr)
		}
	}
	return ip, nil
}

// GenerateID returns a new sortable, lexically-ordered connection trace ID.
func GenerateID() string {
	return ulid.Make().String()
}

// ValidDomain reports whether domain is a syntactically valid HELO argument:
// non-empty, no embedded whitespace, and convertible to ASCII form under the
// IDNA lookup profile. It does not resolve the domain.
func ValidDomain(domain string) bool {
	if domain == "" {
		return false
	}
	for _, c := range domain {
		if c == ' ' || c == '\t' {
			return false
		}
	}
	_, err := idna.Lookup.ToASCII(domain)
	return err == nil
}
