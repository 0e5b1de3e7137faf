// Command rqapi serves the protocol debugging API
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/synodriver/rqgo/pkg/api"
	"github.com/synodriver/rqgo/pkg/config"
	"github.com/synodriver/rqgo/pkg/logging"
)

type flags struct {
	listen     string
	enableCORS bool
	rateLimit  int
}

// serverConfig applies command line overrides on top of the loaded config
func serverConfig(cfg *config.Config, f flags) api.Config {
	c := api.DefaultConfig()
	c.Addr = cfg.APIListen
	if f.listen != "" {
		c.Addr = f.listen
	}
	c.EnableCORS = f.enableCORS
	c.RateLimit = f.rateLimit
	return c
}

func main() {
	var f flags
	configPath := flag.String("config", "", "Path to config file")
	flag.StringVar(&f.listen, "listen", "", "Listen address, overrides api_listen")
	flag.BoolVar(&f.enableCORS, "cors", true, "Enable CORS headers")
	flag.IntVar(&f.rateLimit, "rate-limit", 600, "Rate limit (requests per minute)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logging.Init(logging.DefaultConfig())
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.Init(cfg.Log)

	server := api.NewServer(serverConfig(cfg, f), logging.Component(log, "api"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("api server failed")
	}
	log.Info().Msg("stopped")
}
