package cli

import (
	"context"
	"log/slog"

	"github.com/wharfhq/wharfd/internal/server"
)

// Represents the 'wharfd start' command.
type StartCmd struct {
	Containerd string `help:"Containerd socket address." placeholder:"PATH"`
	Namespace  string `help:"Containerd namespace for images and containers." placeholder:"NAME"`
}

// Executes the start command.
//
// Starts the daemon on a Unix domain socket and blocks until it stops, either
// by a shutdown command over the socket or by the context being cancelled
// (SIGINT or SIGTERM).
func (c *StartCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath:          RootCmd.Socket,
		ContainerdAddress:   c.Containerd,
		ContainerdNamespace: c.Namespace,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("wharfd is running")

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		srv.Stop()
	}()

	srv.Wait()
	return nil
}
