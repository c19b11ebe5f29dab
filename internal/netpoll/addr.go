package netpoll

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Addr is a peer or local endpoint. It is comparable and used as a map key.
type Addr struct {
	Host string
	Port int
}

func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func addrFromSockaddr(sa unix.Sockaddr) Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return Addr{Host: net.IP(v.Addr[:]).String(), Port: v.Port}
	case *unix.SockaddrInet6:
		return Addr{Host: net.IP(v.Addr[:]).String(), Port: v.Port}
	case *unix.SockaddrUnix:
		return Addr{Host: "unix:" + v.Name}
	default:
		return Addr{Host: "unknown"}
	}
}

// sockaddrFor builds a socket address for an IP literal.
func sockaddrFor(ip net.IP, port int) (unix.Sockaddr, int, error) {
	if port < 0 || port > 65535 {
		return nil, 0, fmt.Errorf("netpoll: invalid port %d", port)
	}
	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)
		return sa, unix.AF_INET, nil
	}
	if v6 := ip.To16(); v6 != nil {
		sa := &unix.SockaddrInet6{Port: port}
		copy(sa.Addr[:], v6)
		return sa, unix.AF_INET6, nil
	}
	return nil, 0, fmt.Errorf("netpoll: invalid ip %q", ip)
}

// resolve returns an IP for host, preferring IPv4.
func resolve(ctx context.Context, host string) (net.IP, error) {
	if host == "" {
		return net.IPv4zero, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("netpoll: no addresses for %q", host)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	return addrs[0].IP, nil
}

// OutboundIP returns the local address of the interface that routes off-host,
// falling back to loopback. No packet is sent.
func OutboundIP() string {
	conn, err := net.Dial("udp", "10.255.255.255:1")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	udp, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || udp.IP == nil || udp.IP.IsUnspecified() {
		return "127.0.0.1"
	}
	return udp.IP.String()
}
