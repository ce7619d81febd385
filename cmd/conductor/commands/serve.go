package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentfleet/conductor/internal/config"
	"github.com/agentfleet/conductor/internal/engine"
	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/internal/transport"
)

var (
	serveDir        string
	serveUnixSock   string
	serveTCPAddr    string
	serveHTTPAddr   string
	serveNoDefaults bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start conductor's control plane",
	Long: `Start conductor as a long-running process exposing its command/
event protocol over Unix socket, TCP, and/or HTTP, according to the
bind addresses named in configuration or on the command line.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "working directory (config search root)")
	serveCmd.Flags().StringVar(&serveUnixSock, "unix-socket", "", "override the unix socket bind path")
	serveCmd.Flags().StringVar(&serveTCPAddr, "tcp-addr", "", "override the tcp bind address")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "override the http bind address")
	serveCmd.Flags().BoolVar(&serveNoDefaults, "no-default-http", false, "do not fall back to 127.0.0.1:4455 when no transport is configured")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	logging.Info().Str("version", Version).Msg("starting conductor")
	logging.Info().Str("directory", workDir).Msg("working directory")

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if serveUnixSock != "" {
		cfg.ServerBindUnix = serveUnixSock
	}
	if serveTCPAddr != "" {
		cfg.ServerBindTCP = serveTCPAddr
	}
	if serveHTTPAddr != "" {
		cfg.ServerBindHTTP = serveHTTPAddr
	}
	if cfg.ServerBindUnix == "" && cfg.ServerBindTCP == "" && cfg.ServerBindHTTP == "" && !serveNoDefaults {
		cfg.ServerBindHTTP = "127.0.0.1:4455"
	}

	e := engine.New(*cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var httpSrv *transport.HTTPServer
	var shutdowns []func(context.Context) error

	if cfg.ServerBindUnix != "" {
		srv := transport.NewUnixServer(cfg.ServerBindUnix, e)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		shutdowns = append(shutdowns, srv.Shutdown)
	}
	if cfg.ServerBindTCP != "" {
		srv := transport.NewTCPServer(cfg.ServerBindTCP, e)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		shutdowns = append(shutdowns, srv.Shutdown)
	}
	if cfg.ServerBindHTTP != "" {
		httpSrv = transport.NewHTTPServer(transport.DefaultHTTPConfig(cfg.ServerBindHTTP), e)
		if err := httpSrv.Start(ctx); err != nil {
			return err
		}
		shutdowns = append(shutdowns, httpSrv.Shutdown)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if httpSrv != nil {
		select {
		case <-quit:
		case <-httpSrv.ShutdownRequested():
			logging.Info().Msg("shutdown requested over http")
		}
	} else {
		<-quit
	}

	logging.Info().Msg("shutting down conductor...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, shutdown := range shutdowns {
		if err := shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("transport shutdown error")
		}
	}

	logging.Info().Msg("conductor stopped")
	return nil
}
