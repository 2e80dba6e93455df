package network

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/massmux/LnbitsWalletManager/internal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

const defaultTimeout = 10 * time.Second

// GetClient builds the transport used for all wallet service requests.
// If a socks proxy is configured, connections are dialed through it.
func GetClient(timeout time.Duration, socks *internal.SocksConfiguration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := http.Client{
		Timeout: timeout,
	}
	if socks == nil || len(socks.Host) == 0 {
		return &client, nil
	}
	var auth *proxy.Auth
	if socks.Username != "" && socks.Password != "" {
		auth = &proxy.Auth{User: socks.Username, Password: socks.Password}
	}
	d, err := proxy.SOCKS5("tcp", socks.Host, auth, &net.Dialer{
		Timeout:   20 * time.Second,
		KeepAlive: -1,
	})
	if err != nil {
		log.Errorf("[network] could not set up socks proxy %s: %v", socks.Host, err)
		return &client, err
	}
	specialTransport := &http.Transport{}
	specialTransport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return d.Dial(network, addr)
	}
	client.Transport = specialTransport
	log.Infof("[network] Using socks proxy %s", socks.Host)
	return &client, nil
}
