package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// utlsRoundTripper dials with a browser TLS fingerprint (Firefox's, via
// uTLS) and multiplexes requests to the same host over one cached HTTP/2
// connection, so the upstream sees ordinary browser traffic rather than Go's
// default client hello.
type utlsRoundTripper struct {
	mu          sync.Mutex
	connections map[string]*http2.ClientConn
	pending     map[string]*sync.Cond
	dialer      interface {
		Dial(network, addr string) (net.Conn, error)
	}
}

func newUTLSRoundTripper(proxyURL string) *utlsRoundTripper {
	return &utlsRoundTripper{
		connections: make(map[string]*http2.ClientConn),
		pending:     make(map[string]*sync.Cond),
		dialer:      dialerForProxy(proxyURL),
	}
}

func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	addr := host
	if !strings.Contains(addr, ":") {
		addr = addr + ":443"
	}

	conn, err := t.getOrCreateConnection(host, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: utls dial %s: %w", host, err)
	}
	resp, err := conn.RoundTrip(req)
	if err != nil {
		t.evict(host)
		return nil, err
	}
	return resp, nil
}

func (t *utlsRoundTripper) getOrCreateConnection(host, addr string) (*http2.ClientConn, error) {
	t.mu.Lock()
	if conn, ok := t.connections[host]; ok && conn.CanTakeNewRequest() {
		t.mu.Unlock()
		return conn, nil
	}
	if cond, waiting := t.pending[host]; waiting {
		for waiting {
			cond.Wait()
			_, waiting = t.pending[host]
		}
		if conn, ok := t.connections[host]; ok && conn.CanTakeNewRequest() {
			t.mu.Unlock()
			return conn, nil
		}
	}
	cond := sync.NewCond(&t.mu)
	t.pending[host] = cond
	t.mu.Unlock()

	conn, err := t.createConnection(host, addr)

	t.mu.Lock()
	delete(t.pending, host)
	if err == nil {
		t.connections[host] = conn
	}
	cond.Broadcast()
	t.mu.Unlock()

	return conn, err
}

func (t *utlsRoundTripper) createConnection(host, addr string) (*http2.ClientConn, error) {
	rawConn, err := t.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	serverName := host
	if i := strings.LastIndex(serverName, ":"); i >= 0 {
		serverName = serverName[:i]
	}
	tlsConfig := &utls.Config{ServerName: serverName, NextProtos: []string{"h2", "http/1.1"}}
	uConn := utls.UClient(rawConn, tlsConfig, utls.HelloFirefox_Auto)

	if err := uConn.HandshakeContext(context.Background()); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	if uConn.ConnectionState().NegotiatedProtocol != "h2" {
		uConn.Close()
		return nil, fmt.Errorf("peer did not negotiate h2 (got %q)", uConn.ConnectionState().NegotiatedProtocol)
	}

	h2Transport := &http2.Transport{}
	clientConn, err := h2Transport.NewClientConn(uConn)
	if err != nil {
		uConn.Close()
		return nil, fmt.Errorf("http2 client conn: %w", err)
	}
	return clientConn, nil
}

func (t *utlsRoundTripper) evict(host string) {
	t.mu.Lock()
	delete(t.connections, host)
	t.mu.Unlock()
}
