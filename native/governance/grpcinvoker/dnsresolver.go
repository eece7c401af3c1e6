package grpcinvoker

import (
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"

	"nxgov/native/governance"
)

// PrincipalNames maps a governance Principal to the DNS name whose SRV
// records describe where that collaborator's gRPC endpoint currently
// lives. Lets a deployment move a collaborator to a new host without
// touching config: only the zone needs updating.
type PrincipalNames map[string]string

// NewSRVResolver builds an AddressResolver that looks up the SRV record
// for each Principal's configured DNS name against resolverAddr (a plain
// "host:port" DNS server, queried directly the way the teacher's
// ops/seeds/tools/dnsstub exercises the protocol from the server side).
// The first returned SRV target/port pair wins; callers that need
// load-balancing across multiple records should wrap the result.
func NewSRVResolver(names PrincipalNames, resolverAddr string) AddressResolver {
	client := new(dns.Client)
	return func(target governance.Principal) (string, error) {
		name, ok := names[target.String()]
		if !ok {
			return "", fmt.Errorf("grpcinvoker: no DNS name configured for principal %s", target.String())
		}
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
		resp, _, err := client.Exchange(msg, resolverAddr)
		if err != nil {
			return "", fmt.Errorf("grpcinvoker: SRV lookup %s: %w", name, err)
		}
		for _, rr := range resp.Answer {
			srv, ok := rr.(*dns.SRV)
			if !ok {
				continue
			}
			host := strings.TrimSuffix(srv.Target, ".")
			return net.JoinHostPort(host, fmt.Sprintf("%d", srv.Port)), nil
		}
		return "", fmt.Errorf("grpcinvoker: no SRV records for %s", name)
	}
}
