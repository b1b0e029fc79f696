package api

import (
	"github.com/forgeman/controlplane/internal/orchestrator"
	"github.com/forgeman/controlplane/internal/registry"
	"github.com/forgeman/controlplane/internal/termclient"
	"github.com/forgeman/controlplane/internal/termdaemon"
)

// Surface is the request surface's single entry point, wrapping the
// orchestrator, project registry, and Terminal Daemon client behind one
// function per operation.
type Surface struct {
	orch *orchestrator.Orchestrator
	reg  *registry.Registry

	// termDial lazily dials the Terminal Daemon on first terminal
	// operation rather than at Surface construction, since most
	// sessions never open a terminal.
	termDial func() (*termclient.Client, error)
}

// New builds a Surface over orch and reg. daemonBinary is passed to
// termclient.Dial for the spawn-if-absent path.
func New(orch *orchestrator.Orchestrator, reg *registry.Registry, daemonBinary string) *Surface {
	return &Surface{
		orch: orch,
		reg:  reg,
		termDial: func() (*termclient.Client, error) {
			return termclient.Dial(termdaemon.DefaultSocketPath(), daemonBinary)
		},
	}
}
