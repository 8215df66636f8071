package cli

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/wharfhq/wharfd/internal/build"
	"github.com/wharfhq/wharfd/internal/descriptor"
	"github.com/wharfhq/wharfd/internal/runtime"
	"github.com/wharfhq/wharfd/internal/server"
)

// Represents the 'wharfd build' command.
//
// Runs a single build against containerd directly, without going through the
// daemon socket.
type BuildCmd struct {
	File       string   `short:"f" default:"wharf.yaml" help:"Path to the build descriptor." placeholder:"PATH"`
	Output     string   `short:"o" default:"dist" help:"Output directory for the exported image." placeholder:"DIR"`
	Context    string   `short:"c" help:"Directory the payload path is resolved against. Defaults to the descriptor's directory." placeholder:"DIR"`
	Name       string   `short:"n" help:"Build name, used for container IDs. Defaults to the context directory name." placeholder:"NAME"`
	Platform   []string `short:"p" help:"Target platform, repeatable (e.g. linux/amd64)." placeholder:"OS/ARCH"`
	Containerd string   `help:"Containerd socket address." placeholder:"PATH"`
	Namespace  string   `help:"Containerd namespace for images and containers." placeholder:"NAME"`
}

// Executes the build command.
func (c *BuildCmd) Run(ctx context.Context) error {
	desc, err := descriptor.Load(c.File)
	if err != nil {
		return err
	}

	file, err := filepath.Abs(c.File)
	if err != nil {
		return err
	}

	buildContext := c.Context
	if buildContext == "" {
		buildContext = filepath.Dir(file)
	}
	buildContext, err = filepath.Abs(buildContext)
	if err != nil {
		return err
	}

	name := c.Name
	if name == "" {
		name = filepath.Base(buildContext)
	}

	output, err := filepath.Abs(c.Output)
	if err != nil {
		return err
	}

	address := c.Containerd
	if address == "" {
		address = server.DefaultContainerdAddress
	}
	namespace := c.Namespace
	if namespace == "" {
		namespace = server.DefaultContainerdNamespace
	}

	rt, err := runtime.New(address, namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := build.Run(ctx, rt, build.Options{
		Descriptor: desc,
		Name:       name,
		Output:     output,
		Context:    buildContext,
		Platforms:  c.Platform,
	})
	if err != nil {
		return err
	}

	slog.Info("build complete", "output", result.Output)
	return nil
}
