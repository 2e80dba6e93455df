package internal

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jinzhu/configor"
	log "github.com/sirupsen/logrus"
)

const DefaultLnbitsUrl = "http://localhost:5000/api/v1"

type Configuration struct {
	Bot    BotConfiguration    `yaml:"bot"`
	Lnbits LnbitsConfiguration `yaml:"lnbits"`
	Api    ApiConfiguration    `yaml:"api"`
	Log    LogConfiguration    `yaml:"log"`
}

type SocksConfiguration struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type BotConfiguration struct {
	SocksProxy *SocksConfiguration `yaml:"socks_proxy,omitempty"`
}

type LnbitsConfiguration struct {
	Url       string   `yaml:"url" default:"http://localhost:5000/api/v1"`
	UrlParsed *url.URL `yaml:"-"`
	Timeout   int64    `yaml:"timeout" default:"10"` // seconds
	RateLimit float64  `yaml:"rate_limit"`           // requests per second and api key, 0 disables
	RateBurst int      `yaml:"rate_burst" default:"5"`
}

type ApiConfiguration struct {
	Address      string `yaml:"address" default:"127.0.0.1:5050"`
	ReadTimeout  int64  `yaml:"read_timeout" default:"90"`
	WriteTimeout int64  `yaml:"write_timeout" default:"90"`
}

type LogConfiguration struct {
	Level string `yaml:"level" default:"info"`
}

func (c LnbitsConfiguration) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Load reads the given yaml files. Missing files are skipped, environment
// variables prefixed with WALLETMANAGER override file values.
func Load(files ...string) (*Configuration, error) {
	cfg := &Configuration{}
	err := configor.New(&configor.Config{ENVPrefix: "WALLETMANAGER"}).Load(cfg, files...)
	if err != nil {
		return nil, err
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) check() error {
	if len(c.Lnbits.Url) == 0 {
		log.Warnf("[config] No lnbits url configured, using %s", DefaultLnbitsUrl)
		c.Lnbits.Url = DefaultLnbitsUrl
	}
	c.Lnbits.Url = strings.TrimSuffix(c.Lnbits.Url, "/")
	u, err := url.Parse(c.Lnbits.Url)
	if err != nil {
		return fmt.Errorf("invalid lnbits url: %w", err)
	}
	if len(u.Scheme) == 0 || len(u.Host) == 0 {
		return fmt.Errorf("invalid lnbits url %q: scheme and host required", c.Lnbits.Url)
	}
	c.Lnbits.UrlParsed = u
	if c.Lnbits.RateLimit < 0 {
		return fmt.Errorf("lnbits rate_limit must not be negative")
	}
	if c.Lnbits.RateLimit > 0 && c.Lnbits.RateBurst < 1 {
		c.Lnbits.RateBurst = 1
	}
	if len(c.Api.Address) == 0 {
		return fmt.Errorf("please configure an api address")
	}
	return nil
}
