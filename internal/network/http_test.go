package network

import (
	"net/http"
	"testing"
	"time"

	"github.com/massmux/LnbitsWalletManager/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientWithoutProxy(t *testing.T) {
	client, err := GetClient(0, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, client.Timeout)
	assert.Nil(t, client.Transport)
}

func TestGetClientWithProxy(t *testing.T) {
	client, err := GetClient(3*time.Second, &internal.SocksConfiguration{Host: "127.0.0.1:9050", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, client.Timeout)
	_, ok := client.Transport.(*http.Transport)
	assert.True(t, ok)
}
