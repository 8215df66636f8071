package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/containerd/containerd/v2/core/containers"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/core/images/archive"
	"github.com/containerd/containerd/v2/pkg/rootfs"
	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Filename of the OCI archive produced by Export.
const exportFilename = "image.tar"

// Image configuration applied to the exported image.
//
// The values are recorded in the OCI image config so that every process
// started from the image inherits them: the working directory is the boot
// contract's fixed execution root, env and port document the service's
// runtime surface, and the entrypoint override replaces the base image's
// process manager invocation only when explicitly set.
type ExportConfig struct {
	Workdir    string            // Working directory recorded in the image config.
	Env        map[string]string // Extra environment entries appended to the config.
	Port       int               // Exposed TCP port. Zero leaves the base's ports untouched.
	Entrypoint []string          // Entrypoint override. Empty inherits the base image's.
}

// Commits the container's filesystem changes and exports the result as an
// OCI archive.
//
// The diff between the container's snapshot and its parent is stored as a
// new layer, and the image config is rewritten per cfg. The resulting image
// is written to output/image.tar. The stored image record in containerd is
// never modified: the mutated manifest, config, and index are written to the
// content store as ephemeral blobs and referenced only during the export. A
// content lease protects these blobs from garbage collection until the
// export completes.
func (c *Container) Export(ctx context.Context, output string, cfg ExportConfig) error {
	loaded, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return wrap(err)
	}

	info, err := loaded.Info(ctx)
	if err != nil {
		return wrap(err)
	}

	layer, diffID, err := c.snapshotDiff(ctx, info)
	if err != nil {
		return wrap(err)
	}

	// Acquire a content lease so the ephemeral blobs written by imageTarget
	// survive until the archive export finishes. Without a lease,
	// containerd's GC scheduler may collect them between the write and the
	// export.
	ctx, done, err := c.client.WithLease(ctx)
	if err != nil {
		return wrap(err)
	}
	defer done(context.Background())

	target, err := c.imageTarget(ctx, info.Image, func(manifest *ocispec.Manifest, config *ocispec.Image) {
		manifest.Layers = append(manifest.Layers, layer)
		config.RootFS.DiffIDs = append(config.RootFS.DiffIDs, diffID)
		applyExportConfig(config, cfg)
	})
	if err != nil {
		return wrap(err)
	}

	exportPath := filepath.Join(output, exportFilename)
	if err := c.writeArchive(ctx, target, info.Image, exportPath); err != nil {
		return wrap(err)
	}

	slog.Info("image exported", "path", exportPath)
	return nil
}

// Rewrites an OCI image config with the export settings.
func applyExportConfig(config *ocispec.Image, cfg ExportConfig) {
	if cfg.Workdir != "" {
		config.Config.WorkingDir = cfg.Workdir
	}

	for _, k := range sortedKeys(cfg.Env) {
		config.Config.Env = append(config.Config.Env, k+"="+cfg.Env[k])
	}

	if cfg.Port != 0 {
		if config.Config.ExposedPorts == nil {
			config.Config.ExposedPorts = make(map[string]struct{})
		}
		config.Config.ExposedPorts[fmt.Sprintf("%d/tcp", cfg.Port)] = struct{}{}
	}

	if len(cfg.Entrypoint) > 0 {
		config.Config.Entrypoint = cfg.Entrypoint
		config.Config.Cmd = nil
	}
}

// Computes the diff between the container's snapshot and its parent, returning
// the layer descriptor and its diff ID without modifying the image.
func (c *Container) snapshotDiff(ctx context.Context, info containers.Container) (ocispec.Descriptor, digest.Digest, error) {
	layer, err := rootfs.CreateDiff(ctx,
		info.SnapshotKey,
		c.client.SnapshotService(info.Snapshotter),
		c.client.DiffService(),
	)
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}

	diffID, err := images.GetDiffID(ctx, c.client.ContentStore(), layer)
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}

	return layer, diffID, nil
}

// Writes the image to an OCI tar archive at the given path.
//
// The target descriptor is exported directly via [archive.WithManifest]
// rather than looking up the image by name. This allows the caller to
// export ephemeral content (e.g., a mutated manifest with an extra layer)
// without modifying the stored image record. The image name is attached
// as the OCI reference annotation on the archive entry. When the target
// is a multi-platform index, only the manifest matching the container's
// platform is included.
func (c *Container) writeArchive(ctx context.Context, target ocispec.Descriptor, imageName, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	p, err := platforms.Parse(c.platform)
	if err != nil {
		return err
	}

	return c.client.Export(ctx, f,
		archive.WithManifest(target, imageName),
		archive.WithPlatform(platforms.Only(p)),
	)
}

// Returns map keys in sorted order for deterministic config output.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
