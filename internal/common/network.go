package common

import (
	"fmt"
	"net"
	"strconv"

	"github.com/jackpal/gateway"
)

// LocalIP returns the IPv4 address other LAN devices should use to reach this
// host: the one on the subnet of the default gateway. Without a gateway it
// falls back to the first non-loopback IPv4 address, then to localhost.
func LocalIP() string {
	if gwIP, err := gateway.DiscoverGateway(); err == nil {
		if ip, err := localIPForGateway(gwIP); err == nil {
			return ip.String()
		}
	}
	ips := GetLocalIPs()
	return ips[len(ips)-1]
}

// LocalURL is the LAN address of a server listening on port
func LocalURL(port int) string {
	return "http://" + net.JoinHostPort(LocalIP(), strconv.Itoa(port))
}

func localIPForGateway(gwIP net.IP) (net.IP, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ipv4 := ipnet.IP.To4()
			if ipv4 == nil || !ipv4.IsGlobalUnicast() {
				continue
			}
			if ipnet.Contains(gwIP) {
				return ipv4, nil
			}
		}
	}
	return nil, fmt.Errorf("no local IPv4 address on the subnet of gateway %s", gwIP)
}

// GetLocalIPs returns localhost followed by the first non-loopback IPv4
// address, if any
func GetLocalIPs() []string {
	ips := []string{"localhost", "127.0.0.1"}

	interfaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	for _, i := range interfaces {
		// Skip loopback, down, and point-to-point interfaces
		if i.Flags&net.FlagLoopback != 0 ||
			i.Flags&net.FlagUp == 0 ||
			i.Flags&net.FlagPointToPoint != 0 {
			continue
		}

		addrs, err := i.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				return append(ips, ipnet.IP.String())
			}
		}
	}
	return ips
}
