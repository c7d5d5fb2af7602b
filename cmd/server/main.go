package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/aeolun/roomrelay/pkg/logx"
	"github.com/aeolun/roomrelay/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

// exitUsage is the exit status for invalid command lines
const exitUsage = 2

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, waitForSignal))
}

// options holds the parsed command line
type options struct {
	configPath string
	port       int
	portSet    bool
	httpPort   int
	bind       string
	pprofAddr  string
	debug      bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("roomrelay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to an optional TOML config file")
	fs.IntVar(&opts.port, "port", 0, "TCP port to listen on (required)")
	fs.IntVar(&opts.httpPort, "http-port", -1, "Port for WebSocket, /metrics and /health (0 disables, overrides config)")
	fs.StringVar(&opts.bind, "bind", "", "Address to bind (overrides config, default all interfaces)")
	fs.StringVar(&opts.pprofAddr, "pprof", "", "Serve net/http/pprof on this address, e.g. localhost:6060")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.version, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "port" {
			opts.portSet = true
		}
	})
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// buildConfig merges defaults, the config file and the command line, in that order
func buildConfig(opts options) (server.ServerConfig, error) {
	cfg := server.DefaultConfig()

	if opts.configPath != "" {
		fileConfig, err := server.LoadConfig(opts.configPath)
		if err != nil {
			return server.ServerConfig{}, err
		}
		cfg = fileConfig.ToServerConfig()
	}

	cfg.TCPPort = opts.port
	if opts.httpPort >= 0 {
		cfg.HTTPPort = opts.httpPort
	}
	if opts.bind != "" {
		cfg.BindAddress = opts.bind
	}
	if opts.debug {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func run(args []string, stdout, stderr io.Writer, wait func()) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if opts.version {
		fmt.Fprintf(stdout, "roomrelay server %s\n", Version)
		return 0
	}

	// Ports are checked before any socket is opened
	if !opts.portSet {
		fmt.Fprintln(stderr, server.ErrMissingPort)
		return exitUsage
	}
	if err := server.ValidatePort(opts.port); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logx.Init(cfg.Debug)
	logger := logx.Component("server")

	srv := server.NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("failed to start server")
		return 1
	}
	logger.Info().Str("version", Version).Int("port", cfg.TCPPort).Int("http_port", cfg.HTTPPort).Msg("server started")

	if opts.pprofAddr != "" {
		go func() {
			logger.Info().Str("addr", opts.pprofAddr).Msg("starting pprof server")
			if err := http.ListenAndServe(opts.pprofAddr, nil); err != nil {
				logger.Warn().Err(err).Msg("pprof server error")
			}
		}()
	}

	wait()

	logger.Info().Msg("shutting down server")
	if err := srv.Stop(); err != nil {
		logger.Warn().Err(err).Msg("error during shutdown")
	}
	return 0
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}
