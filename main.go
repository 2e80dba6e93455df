package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/massmux/LnbitsWalletManager/internal"
	"github.com/massmux/LnbitsWalletManager/internal/api"
	"github.com/massmux/LnbitsWalletManager/internal/lnbits"
	"github.com/massmux/LnbitsWalletManager/internal/network"
	"github.com/massmux/LnbitsWalletManager/internal/rate"
	"github.com/massmux/LnbitsWalletManager/internal/session"
	log "github.com/sirupsen/logrus"
)

// setLogger will initialize the log format
func setLogger(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("[main] unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	customFormatter := new(log.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	log.SetFormatter(customFormatter)
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	defer withRecovery()
	cfg, err := internal.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] could not load configuration: %v", err)
	}
	setLogger(cfg.Log.Level)

	client, err := newLnbitsClient(cfg)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	log.Infof("[main] Using lnbits at %s", client.URL())

	s := api.NewServer(cfg.Api.Address,
		time.Duration(cfg.Api.ReadTimeout)*time.Second,
		time.Duration(cfg.Api.WriteTimeout)*time.Second)
	api.NewService(session.NewManager(client)).Register(s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Errorln(err)
		}
	}()
	if err := s.ListenAndServe(); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func newLnbitsClient(cfg *internal.Configuration) (*lnbits.Client, error) {
	httpClient, err := network.GetClient(cfg.Lnbits.TimeoutDuration(), cfg.Bot.SocksProxy)
	if err != nil {
		return nil, err
	}
	opts := []lnbits.Option{lnbits.WithHTTPClient(httpClient)}
	if cfg.Lnbits.RateLimit > 0 {
		opts = append(opts, lnbits.WithLimiter(rate.NewLimiter(cfg.Lnbits.RateLimit, cfg.Lnbits.RateBurst)))
	}
	return lnbits.NewClient(cfg.Lnbits.Url, opts...), nil
}

func withRecovery() {
	if r := recover(); r != nil {
		log.Errorln("Recovered panic: ", r)
		debug.PrintStack()
	}
}
