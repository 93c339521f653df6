package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/leadline/leadline/internal/agent"
	"github.com/leadline/leadline/internal/config"
	"github.com/leadline/leadline/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	backendFlag := flag.String("backend", "", "backend base URL (overrides config)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = &config.Config{}
	}
	if *backendFlag != "" {
		cfg.BackendURL = *backendFlag
	}
	if cfg.BackendURL == "" {
		fmt.Fprintln(os.Stderr, "error: no backend URL; set backend_url in config.toml or pass --backend")
		os.Exit(1)
	}

	app := fx.New(
		agent.Module(agent.Params{SessionName: sessionName, Config: cfg}),
	)

	app.Run()
}
