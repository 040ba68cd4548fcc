package dnsprobe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		Handler:           handler,
		NotifyStartedFunc: func() { close(started) },
	}
	go func() {
		_ = server.ActivateAndServe()
	}()
	t.Cleanup(func() { _ = server.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}

	return pc.LocalAddr().String()
}

func answerA(ips ...string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		for _, ip := range ips {
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP(ip),
			})
		}
		_ = w.WriteMsg(m)
	}
}

func TestLookup_LookupA(t *testing.T) {
	addr := startServer(t, answerA("172.20.0.2", "172.20.0.9"))

	answers, err := New().LookupA(context.Background(), addr, "app.local")
	require.NoError(t, err)
	assert.Equal(t, []string{"172.20.0.2", "172.20.0.9"}, answers)
}

func TestLookup_LookupA_NoAnswers(t *testing.T) {
	addr := startServer(t, answerA())

	answers, err := New().LookupA(context.Background(), addr, "app.local")
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestLookup_LookupA_Rcode(t *testing.T) {
	addr := startServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeNameError)
		_ = w.WriteMsg(m)
	})

	_, err := New().LookupA(context.Background(), addr, "missing.local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NXDOMAIN")
}

func TestLookup_LookupA_Timeout(t *testing.T) {
	addr := startServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		// never answers
	})

	_, err := New(WithTimeout(100*time.Millisecond)).LookupA(context.Background(), addr, "app.local")
	require.Error(t, err)
}
