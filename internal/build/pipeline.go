package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wharfhq/wharfd/internal/descriptor"
	"github.com/wharfhq/wharfd/internal/paths"
	"github.com/wharfhq/wharfd/internal/registry"
	"github.com/wharfhq/wharfd/internal/requirements"
	"github.com/wharfhq/wharfd/internal/runtime"
)

// Default shell used for commands executed inside the build container.
const defaultShell = "/bin/sh"

// Command used to install the dependency manifest. The manifest path is
// appended, resolved by the installer relative to the working directory.
const installCommand = "pip install --no-cache-dir -r"

// Controls build execution.
type Options struct {
	Descriptor *descriptor.Descriptor // Descriptor to build.
	Name       string                 // Build name, used as a prefix for container IDs.
	Output     string                 // Directory for the exported image.
	Context    string                 // Directory for resolving the payload path.
	Platforms  []string               // Target platforms (e.g., ["linux/amd64"]). Defaults to host.
}

// Returned after a successful build.
type Result struct {
	Output string // Directory containing the exported image.
}

// Executes a build against the container runtime.
//
// The base image is pulled through the default registry client and each
// target platform is built independently; the exported archive lands in the
// output directory (per-platform subdirectories for multi-platform builds).
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	return run(ctx, containerdLauncher{rt}, registry.NewClient(""), opts)
}

// Executes a build with injected launcher and resolver.
func run(ctx context.Context, launcher Launcher, resolver Resolver, opts Options) (*Result, error) {
	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{runtime.DefaultPlatform()}
	}

	slog.Info("executing build",
		"name", opts.Name,
		"base", opts.Descriptor.Base,
		"output", opts.Output,
		"platforms", opts.Platforms,
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	p := &pipeline{
		launcher:  launcher,
		resolver:  resolver,
		desc:      opts.Descriptor,
		name:      opts.Name,
		output:    opts.Output,
		context:   opts.Context,
		platforms: opts.Platforms,
	}

	return p.build(ctx)
}

// Holds shared state for building all target platforms.
type pipeline struct {
	launcher   Launcher               // Starts build containers.
	resolver   Resolver               // Pulls base image archives.
	desc       *descriptor.Descriptor // Build descriptor.
	name       string                 // Build name, used as a prefix for container IDs.
	output     string                 // Output directory for the final build artifact.
	context    string                 // Directory for resolving the payload path.
	platforms  []string               // Target platforms to build for.
	containers []Executor             // All build containers, destroyed after the build completes.
}

// Builds the descriptor end-to-end for every target platform.
//
// Platforms are built independently. All build containers are destroyed when
// the build completes, whether it succeeded or not.
func (p *pipeline) build(ctx context.Context) (*Result, error) {
	defer p.destroyContainers(ctx)

	for _, platform := range p.platforms {
		if err := p.buildPlatform(ctx, platform); err != nil {
			return nil, fmt.Errorf("platform %s: %w", platform, err)
		}
	}

	return &Result{Output: p.output}, nil
}

// Runs the phase sequence for a single platform and exports the result.
//
// Phases commit strictly in order; the first failure aborts the build with
// the failing phase named, and the export only happens once every phase has
// committed, so a failed build leaves no image behind.
func (p *pipeline) buildPlatform(ctx context.Context, platform string) error {
	slog.Info("building platform", "platform", platform)

	output := p.platformOutput(platform)
	if err := os.MkdirAll(output, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	pr := &progress{}

	ctr, err := p.selectBase(ctx, platform)
	if err != nil {
		return pr.abort(err)
	}
	if err := pr.commit(PhaseBaseSelected); err != nil {
		return err
	}

	if err := p.stagePayload(ctx, ctr); err != nil {
		return pr.abort(err)
	}
	if err := pr.commit(PhasePayloadStaged); err != nil {
		return err
	}

	if err := ctr.MkdirAll(ctx, p.desc.Workdir); err != nil {
		return pr.abort(err)
	}
	if err := pr.commit(PhaseWorkdirSet); err != nil {
		return err
	}

	if err := p.installDependencies(ctx, ctr); err != nil {
		return pr.abort(err)
	}
	if err := pr.commit(PhaseDependenciesInstalled); err != nil {
		return err
	}

	if !pr.complete() {
		return fmt.Errorf("%w: pipeline stopped before all phases committed", ErrBuild)
	}

	if err := p.export(ctx, ctr, output); err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}

	return nil
}

// Resolves the base image for the platform and starts the build container.
func (p *pipeline) selectBase(ctx context.Context, platform string) (Executor, error) {
	v1p, err := registry.ParsePlatform(platform)
	if err != nil {
		return nil, err
	}

	archive, err := p.resolver.Resolve(ctx, p.desc.Base, v1p)
	if err != nil {
		return nil, err
	}

	ctr, err := p.launcher.StartContainer(ctx, archive, p.containerID(platform), platform)
	if err != nil {
		return nil, err
	}

	p.containers = append(p.containers, ctr)
	return ctr, nil
}

// Copies the payload directory into the container at the descriptor's
// destination.
//
// A missing or unreadable payload directory fails here, before the working
// directory or dependency phases run. The payload is treated as opaque: its
// contents are copied verbatim and never modified afterwards.
func (p *pipeline) stagePayload(ctx context.Context, ctr Executor) error {
	src := p.payloadDir()

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStage, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: payload %q is not a directory", ErrStage, src)
	}

	checkEntrypoint(src)

	slog.Debug("staging payload", "src", src, "dest", p.desc.Dest)

	if err := ctr.MkdirAll(ctx, p.desc.Dest); err != nil {
		return fmt.Errorf("%w: %w", ErrStage, err)
	}

	if err := copyTree(ctx, ctr, src, p.desc.Dest); err != nil {
		return fmt.Errorf("%w: %w", ErrStage, err)
	}

	return nil
}

// Installs the dependency manifest into the image's interpreter environment.
//
// The manifest must already be staged: it is looked up inside the container
// at its workdir-relative path, parsed for the build record, and handed to
// the installer. Package and version resolution is the installer's own
// concern; a non-zero exit aborts the build with the installer's stderr.
func (p *pipeline) installDependencies(ctx context.Context, ctr Executor) error {
	manifest := p.desc.RequirementsPath()

	ok, err := ctr.PathExists(ctx, manifest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDependency, err)
	}
	if !ok {
		return fmt.Errorf("%w: manifest %s not found in staged payload", ErrDependency, manifest)
	}

	if err := p.checkManifest(manifest); err != nil {
		return err
	}

	command := installCommand + " " + p.desc.Requirements
	slog.Debug("run", "command", command, "workdir", p.desc.Workdir)

	result, err := ctr.Exec(ctx, defaultShell, command, p.environ(), p.desc.Workdir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDependency, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: exit code %d: %s", ErrDependency, result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	return nil
}

// Stops the container and exports its committed filesystem as the final
// image, with the descriptor's working directory, env, and port recorded in
// the image config.
func (p *pipeline) export(ctx context.Context, ctr Executor, output string) error {
	if err := ctr.Stop(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	cfg := runtime.ExportConfig{
		Workdir:    p.desc.Workdir,
		Env:        p.desc.Env,
		Port:       p.desc.Port,
		Entrypoint: p.desc.Entrypoint,
	}

	if err := ctr.Export(ctx, output, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	return nil
}

// Parses the staged manifest's host-side copy, failing the dependency phase
// on malformed entries and logging the declared packages otherwise.
//
// Validation happens before the installer runs, so a bad manifest surfaces a
// line-numbered diagnostic instead of an installer stack trace. A manifest
// path outside the payload tree has no host-side copy and is left for the
// installer to judge.
func (p *pipeline) checkManifest(manifest string) error {
	rel, ok := strings.CutPrefix(manifest, p.desc.Dest+"/")
	if !ok {
		return nil
	}

	reqs, err := requirements.ParseFile(filepath.Join(p.payloadDir(), filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDependency, manifest, err)
	}

	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		names = append(names, r.String())
	}
	slog.Info("installing dependencies", "manifest", manifest, "packages", names)
	return nil
}

// Destroys all build containers.
//
// Cleanup is detached from the build's context: when the build fails because
// the client disconnected or the daemon was signalled, the containers must
// still be removed rather than leak.
func (p *pipeline) destroyContainers(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, ctr := range p.containers {
		ctr.Destroy(ctx)
	}
}

// Returns the host path of the payload directory, resolved against the build
// context.
func (p *pipeline) payloadDir() string {
	if filepath.IsAbs(p.desc.App) {
		return p.desc.App
	}
	return filepath.Join(p.context, p.desc.App)
}

// Formats the descriptor's environment as "key=value" pairs in sorted order.
func (p *pipeline) environ() []string {
	keys := make([]string, 0, len(p.desc.Env))
	for k := range p.desc.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+p.desc.Env[k])
	}
	return env
}

// Returns a unique container ID, scoped to this build and platform.
func (p *pipeline) containerID(platform string) string {
	return fmt.Sprintf("%s-%s-build", p.name, platformSlug(platform))
}

// Returns the output directory for a specific platform.
//
// When building for a single platform, the output directory is left as-is
// to preserve the {output}/image.tar convention. For multi-platform builds,
// each platform gets a subdirectory (e.g., {output}/linux-amd64).
func (p *pipeline) platformOutput(platform string) string {
	if len(p.platforms) == 1 {
		return p.output
	}
	return filepath.Join(p.output, platformSlug(platform))
}

// Converts a platform string to a filesystem-safe slug.
//
// Replaces slashes with dashes (e.g., "linux/amd64" becomes "linux-amd64").
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}
