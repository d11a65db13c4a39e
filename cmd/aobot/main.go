package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/auno/aobot/internal/bot"
	"github.com/auno/aobot/internal/config"
	"github.com/auno/aobot/internal/module/system"
	"github.com/auno/aobot/internal/store"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// Exit codes communicate the final bot status to the supervisor.
const (
	exitOK           = 0
	exitLoginFailure = 1
	exitRuntimeError = 2
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "aobot",
		Short:         "Multi-connection chat bot for the game chat network",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(run(configPath))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "Path to configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aobot version %s\n", version)
			fmt.Printf("Built: %s\n", buildDate)
			fmt.Printf("Commit: %s\n", gitCommit)
		},
	})

	if err := root.Execute(); err != nil {
		log.Println(err)
		os.Exit(exitRuntimeError)
	}
}

func run(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return exitRuntimeError
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		return exitRuntimeError
	}
	defer db.Close()

	b := bot.New(cfg, store.NewRegistry(db))
	if err := b.RegisterModules(system.New(b, cfg.SuperAdmin, version)); err != nil {
		log.Printf("Module registration failed: %v", err)
		return exitRuntimeError
	}

	log.Printf("Connecting to %s:%d...", cfg.Server, cfg.Port)
	if err := b.Connect(); err != nil {
		log.Printf("Login failed: %v", err)
		return exitLoginFailure
	}

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		b.Shutdown()
	}()

	log.Println("Connected, entering main loop...")
	if err := b.Run(); err != nil {
		if errors.Is(err, bot.ErrRuntime) {
			log.Printf("Runtime error: %v", err)
			return exitRuntimeError
		}
		log.Printf("Stopped: %v", err)
		return exitRuntimeError
	}
	return exitOK
}
