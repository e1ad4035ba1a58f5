package main

import (
	"fmt"
	"os"

	"github.com/danmuck/bedctl/internal/config"
	"github.com/danmuck/bedctl/internal/logging"
	"github.com/danmuck/bedctl/internal/service"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to bedctl TOML config")
	listen := pflag.String("listen", "", "tag listener address, overrides listen_addr")
	httpAddr := pflag.String("http", "", "operator API address, overrides http_addr")
	initPath := pflag.String("init-config", "", "write a default config to this path and exit")
	force := pflag.Bool("force", false, "overwrite with --init-config")
	pflag.Parse()

	logging.ConfigureRuntime()

	if *initPath != "" {
		if err := config.WriteTemplate(*initPath, *force); err != nil {
			fail(err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", *initPath)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fail(err)
		}
		cfg = loaded
	}
	if pflag.CommandLine.Changed("listen") {
		cfg.ListenAddr = *listen
	}
	if pflag.CommandLine.Changed("http") {
		cfg.HTTPAddr = *httpAddr
	}

	if err := service.New(cfg).Run(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "bedctl: %v\n", err)
	os.Exit(1)
}
