package grpcinvoker

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"nxgov/native/governance"
)

func TestSRVResolverUnknownPrincipal(t *testing.T) {
	resolver := NewSRVResolver(PrincipalNames{}, "127.0.0.1:0")
	target, err := governance.NewPrincipal(bytes.Repeat([]byte{1, 2, 3, 4}, 5))
	require.NoError(t, err)
	_, err = resolver(target)
	require.Error(t, err)
}

// TestSRVResolverAnswersLookup spins up a tiny authoritative SRV responder
// (the teacher's ops/seeds/tools/dnsstub server-side shape, answering SRV
// instead of TXT) and checks NewSRVResolver resolves against it end to end.
func TestSRVResolverAnswersLookup(t *testing.T) {
	const fqdn = "validator.internal."
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		msg := &dns.Msg{}
		msg.SetReply(r)
		msg.Authoritative = true
		if len(r.Question) == 1 && strings.EqualFold(r.Question[0].Name, fqdn) && r.Question[0].Qtype == dns.TypeSRV {
			msg.Answer = append(msg.Answer, &dns.SRV{
				Hdr:    dns.RR_Header{Name: fqdn, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 5},
				Target: "host1.internal.",
				Port:   9443,
			})
		}
		_ = w.WriteMsg(msg)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	server := &dns.Server{PacketConn: pc, Handler: handler}
	go func() { _ = server.ActivateAndServe() }()
	defer server.Shutdown()

	target, err := governance.NewPrincipal(bytes.Repeat([]byte{4, 5, 6, 7}, 5))
	require.NoError(t, err)
	names := PrincipalNames{target.String(): fqdn}
	resolver := NewSRVResolver(names, pc.LocalAddr().String())

	addr, err := resolver(target)
	require.NoError(t, err)
	require.Equal(t, "host1.internal:9443", addr)
}
