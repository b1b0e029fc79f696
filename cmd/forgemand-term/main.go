// Command forgemand-term is the Terminal Daemon: a detached process
// that hosts PTY sessions behind a Unix domain socket so terminals
// outlive the orchestrator and any CLI invocation attached to them.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/forgeman/controlplane/internal/termdaemon"
)

func main() {
	socketPath := flag.String("socket", "", "Unix socket path to listen on (defaults to the conventional runtime location)")
	flag.Parse()

	if *socketPath == "" {
		*socketPath = termdaemon.DefaultSocketPath()
	}

	if err := run(*socketPath); err != nil {
		fmt.Fprintf(os.Stderr, "forgemand-term: %v\n", err)
		os.Exit(1)
	}
}

func run(socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	d := termdaemon.New(socketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() { serveErr <- d.Serve() }()

	select {
	case <-sigCh:
		d.Shutdown()
		return nil
	case err := <-serveErr:
		return err
	}
}
