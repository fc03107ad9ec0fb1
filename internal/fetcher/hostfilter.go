package fetcher

import (
	"fmt"
	"net"
	"strings"

	"xfeed/pkg/feedtypes"
)

// blockedPorts enumerates the service ports a fetch target must not
// use, per §7.
var blockedPorts = map[string]struct{}{
	"22": {}, "23": {}, "25": {}, "53": {}, "110": {}, "143": {},
	"993": {}, "995": {}, "1433": {}, "3306": {}, "5432": {}, "6379": {},
	"27017": {},
}

// CheckPublicHost rejects localhost, RFC1918/link-local/unique-local
// ranges, and disallowed ports before any outbound I/O is attempted
// (§7, §8 "Private-host filter").
func CheckPublicHost(u feedtypes.PageURL) error {
	host := u.Host()
	if host == "" {
		return fmt.Errorf("url has no host")
	}
	if port := u.Port(); port != "" {
		if _, blocked := blockedPorts[port]; blocked {
			return fmt.Errorf("port %s is not permitted", port)
		}
	}
	lower := strings.ToLower(host)
	if lower == "localhost" {
		return fmt.Errorf("localhost is not permitted")
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("address %s is not permitted", host)
		}
		return nil
	}
	// Non-literal hosts (the common case) are resolved by the caller's
	// transport; a DNS-rebinding attacker could still point a public
	// name at a private address, but that is out of scope for this
	// synchronous, pre-dial check.
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		return false
	}
	// IPv6 unique-local fc00::/7 is already covered by IsPrivate, but
	// be explicit per §7's listing.
	return ip.Mask(net.CIDRMask(7, 128)).Equal(net.ParseIP("fc00::"))
}
