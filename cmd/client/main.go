package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aeolun/roomrelay/pkg/client"
	"github.com/aeolun/roomrelay/pkg/client/ui"
	"github.com/aeolun/roomrelay/pkg/logx"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, runProgram))
}

// runProgram drives the terminal UI until the user quits
func runProgram(c client.ChatClient) error {
	p := tea.NewProgram(ui.NewModel(c), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func run(args []string, stdout, stderr io.Writer, program func(client.ChatClient) error) int {
	fs := flag.NewFlagSet("roomrelay-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", "localhost:4117", "Server address (host:port or ws://host:port/ws)")
	timeout := fs.Duration("timeout", client.DefaultTimeout, "Connect and request timeout")
	logFile := fs.String("log", "", "Write debug logs to this file (the terminal belongs to the UI)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Connect to server
	conn, err := client.Dial(*server, *timeout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to connect to %s: %v\n", *server, err)
		return 1
	}
	defer conn.Close()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logx.InitWithWriter(f, true)
		conn.SetLogger(logx.Component("client"))
	}

	start := time.Now()
	if err := program(conn); err != nil {
		fmt.Fprintf(stderr, "Error running program: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Session lasted %s (%d bytes sent, %d received)\n",
		time.Since(start).Round(time.Second), conn.BytesSent(), conn.BytesReceived())
	return 0
}
