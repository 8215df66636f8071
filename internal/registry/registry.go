package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/wharfhq/wharfd/internal/paths"
)

var ErrResolve = errors.New("base image resolution failed")

// Resolves base image references to local OCI archives, caching pulled
// archives by digest.
type Client struct {
	cacheDir string          // Directory holding cached archives.
	options  []remote.Option // Base options applied to every registry call.
}

// Creates a client caching archives under dir.
//
// An empty dir uses the default XDG image cache. Credentials come from the
// ambient docker keychain.
func NewClient(dir string) *Client {
	if dir == "" {
		dir = paths.ImageCache()
	}
	return &Client{
		cacheDir: dir,
		options:  []remote.Option{remote.WithAuthFromKeychain(authn.DefaultKeychain)},
	}
}

// Resolves a base reference for a platform and returns the path of a local
// OCI archive containing it.
//
// The archive is cached under the digest of the platform-resolved manifest,
// not the reference's root digest: for a multi-arch base the root is an index
// whose digest is the same for every platform, and keying on it would hand
// one platform's archive to all of them. When an archive for the resolved
// digest is already cached the layer pull is skipped. A failed or cancelled
// pull leaves no partial archive behind.
func (c *Client) Resolve(ctx context.Context, base string, platform v1.Platform) (string, error) {
	ref, err := name.ParseReference(base)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrResolve, base, err)
	}

	opts := append([]remote.Option{remote.WithContext(ctx), remote.WithPlatform(platform)}, c.options...)

	desc, err := remote.Get(ref, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrResolve, base, err)
	}

	img, err := desc.Image()
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrResolve, base, err)
	}

	d, err := img.Digest()
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrResolve, base, err)
	}

	path := c.archivePath(d)
	if _, err := os.Stat(path); err == nil {
		slog.Debug("base image cache hit", "ref", base, "digest", d.String())
		return path, nil
	}

	if err := c.writeArchive(ref, img, path); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrResolve, base, err)
	}

	slog.Info("base image pulled", "ref", base, "digest", d.String())
	return path, nil
}

// Writes the image archive to path via a temporary file in the same
// directory, renaming only on success.
func (c *Client) writeArchive(ref name.Reference, img v1.Image, path string) error {
	if err := os.MkdirAll(c.cacheDir, paths.DefaultDirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.cacheDir, ".pull-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tarball.Write(ref, img, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// Returns the cache path for an archive with the given manifest digest.
func (c *Client) archivePath(d v1.Hash) string {
	return filepath.Join(c.cacheDir, d.Algorithm+"-"+d.Hex+".tar")
}

// Parses an OCI platform string (e.g. "linux/amd64") into a registry
// platform selector.
func ParsePlatform(platform string) (v1.Platform, error) {
	p, err := v1.ParsePlatform(platform)
	if err != nil {
		return v1.Platform{}, fmt.Errorf("%w: platform %q: %w", ErrResolve, platform, err)
	}
	return *p, nil
}
