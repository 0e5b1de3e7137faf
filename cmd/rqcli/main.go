// Command rqcli logs an account in over a real SSO connection and manages
// the local device and session store.
//
// Usage:
//
//	rqcli [-config file] login      QR code login, or password login when uin and password_md5 are set
//	rqcli [-config file] devices    list stored device profiles
//	rqcli [-config file] sessions   list stored sessions
//	rqcli [-config file] device NAME  create a random device profile under NAME
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/synodriver/rqgo/pkg/config"
	"github.com/synodriver/rqgo/pkg/logging"
	"github.com/synodriver/rqgo/pkg/storage"
)

type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *storage.Store
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	qrPath := flag.String("qrcode", "qrcode.png", "Where to save the login QR code")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] login|devices|sessions|device NAME\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.Log)

	store, err := storage.Open(cfg.DBPath, cfg.StorePassphrase)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer store.Close()

	a := &app{cfg: cfg, log: log, store: store}

	switch flag.Arg(0) {
	case "login", "":
		err = a.login(*qrPath)
	case "devices":
		err = a.listDevices()
	case "sessions":
		err = a.listSessions()
	case "device":
		if flag.NArg() < 2 {
			flag.Usage()
			os.Exit(2)
		}
		err = a.newDevice(flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msg(flag.Arg(0) + " failed")
		store.Close()
		os.Exit(1)
	}
}
