package build

import (
	"context"
	"io"

	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/wharfhq/wharfd/internal/runtime"
)

// Container operations the pipeline needs from a build container.
//
// *runtime.Container implements this. Tests substitute a recorder to verify
// phase ordering and abort semantics without a containerd daemon.
type Executor interface {
	MkdirAll(ctx context.Context, path string) error
	CopyTo(ctx context.Context, r io.Reader, destDir string) error
	PathExists(ctx context.Context, path string) (bool, error)
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (*runtime.ExecResult, error)
	Stop(ctx context.Context) error
	Export(ctx context.Context, output string, cfg runtime.ExportConfig) error
	Destroy(ctx context.Context)
}

// Starts build containers from local image archives.
type Launcher interface {
	StartContainer(ctx context.Context, archive, id, platform string) (Executor, error)
}

// Resolves base image references to local image archives.
//
// *registry.Client implements this.
type Resolver interface {
	Resolve(ctx context.Context, base string, platform v1.Platform) (string, error)
}

// Adapts *runtime.Runtime to the [Launcher] interface.
type containerdLauncher struct {
	rt *runtime.Runtime
}

func (l containerdLauncher) StartContainer(ctx context.Context, archive, id, platform string) (Executor, error) {
	return l.rt.StartContainer(ctx, archive, id, platform)
}
