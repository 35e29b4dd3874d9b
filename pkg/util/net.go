package util

import (
	"net"
	"strings"
)

func isPrivateIPv4(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	switch {
	case ip4[0] == 10:
		return true
	case ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31:
		return true
	case ip4[0] == 192 && ip4[1] == 168:
		return true
	}
	return false
}

// lanIPv4 returns the first private IPv4 of an up, non-loopback interface.
func lanIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && isPrivateIPv4(ipn.IP) {
				return ipn.IP.To4().String()
			}
		}
	}
	return ""
}

// ServeURL turns a listen address into a URL clients can reach. Wildcard
// binds are reported with the LAN address, falling back to localhost.
func ServeURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	h := strings.TrimSpace(host)
	if h == "" || h == "0.0.0.0" || h == "::" {
		h = lanIPv4()
		if h == "" {
			h = "127.0.0.1"
		}
	}
	return "http://" + net.JoinHostPort(h, port)
}
