package fetcher

import (
	"context"
	"fmt"
	"net"

	tls "github.com/refraction-networking/utls"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

// chromeSpecReady is false when the spec could not be generated; dials then
// fall back to the stock HelloChrome_Auto preset.
var chromeSpecReady bool

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// http.Transport cannot speak HTTP/2 over a utls conn, so never offer h2.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
	chromeSpecReady = true
}

// dialFunc opens the raw TCP connection (direct or through a SOCKS proxy).
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// dialTLSChrome wraps a raw connection in a utls client presenting the
// Chrome fingerprint and completes the handshake.
func dialTLSChrome(ctx context.Context, dial dialFunc, network, addr string) (net.Conn, error) {
	rawConn, err := dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	cfg := &tls.Config{ServerName: host}

	var tlsConn *tls.UConn
	if chromeSpecReady {
		tlsConn = tls.UClient(rawConn, cfg, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
			rawConn.Close()
			return nil, fmt.Errorf("fetcher: apply tls spec: %w", err)
		}
	} else {
		tlsConn = tls.UClient(rawConn, cfg, tls.HelloChrome_Auto)
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("fetcher: tls handshake with %s: %w", host, err)
	}
	return tlsConn, nil
}
