package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chatrelay/internal/app"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
)

// version is set via ldflags during release builds.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	var (
		addrFlag = flag.String("addr", "", "listen address (host:port), overrides config")
		dbFlag   = flag.String("db", "", "pebble database path, overrides config")
		cfgFlag  = flag.String("config", "", "path to config.yaml")
	)
	flag.Parse()

	cfgPath := *cfgFlag
	if cfgPath == "" {
		cfgPath = os.Getenv("CHATRELAY_CONFIG")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// flags win over config and env
	if *dbFlag != "" {
		cfg.Server.DBPath = *dbFlag
	}
	if *addrFlag != "" {
		host, port, ok := config.SplitAddr(*addrFlag)
		if !ok {
			log.Fatalf("invalid -addr value: %q", *addrFlag)
		}
		cfg.Server.Address = host
		cfg.Server.Port = port
	}

	logger.Init(cfg.Logging.Level)

	a, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
