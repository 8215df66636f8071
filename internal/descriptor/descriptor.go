package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"
)

// Default in-image directory for the staged payload.
const DefaultWorkdir = "/app"

// Default dependency manifest filename, resolved relative to the workdir.
const DefaultRequirements = "requirements.txt"

var ErrDescriptor = errors.New("invalid descriptor")

// Declares how a service image is assembled.
//
// A descriptor names a pinned base image, a host directory holding the
// application payload, the in-image working directory, and the dependency
// manifest to install. The payload itself is opaque: the pipeline copies it
// verbatim and never interprets its contents beyond the entry point
// preflight.
type Descriptor struct {
	Base         string            `yaml:"base" json:"base"`                                     // Base image reference, tag or digest pinned.
	App          string            `yaml:"app" json:"app"`                                       // Host directory staged into the image.
	Dest         string            `yaml:"dest,omitempty" json:"dest,omitempty"`                 // In-image destination for the payload. Defaults to the workdir.
	Workdir      string            `yaml:"workdir,omitempty" json:"workdir,omitempty"`           // Working directory inherited by every process in the image.
	Requirements string            `yaml:"requirements,omitempty" json:"requirements,omitempty"` // Manifest path relative to the workdir.
	Env          map[string]string `yaml:"env,omitempty" json:"env,omitempty"`                   // Extra environment for the image config.
	Port         int               `yaml:"port,omitempty" json:"port,omitempty"`                 // Exposed port recorded in the image config.
	Entrypoint   []string          `yaml:"entrypoint,omitempty" json:"entrypoint,omitempty"`     // Entrypoint override. Empty inherits the base image's.
}

// Reads and parses a descriptor file, applies defaults, and validates it.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}
	return Parse(data)
}

// Parses a descriptor document, applies defaults, and validates it.
//
// Unknown fields are rejected so that typos in a descriptor fail the build
// instead of being silently ignored.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}

	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	return &d, nil
}

// Fills in unset optional fields.
func (d *Descriptor) applyDefaults() {
	if d.Workdir == "" {
		d.Workdir = DefaultWorkdir
	}
	if d.Dest == "" {
		d.Dest = d.Workdir
	}
	if d.Requirements == "" {
		d.Requirements = DefaultRequirements
	}
}

// Checks the descriptor's build-time contract.
//
// The base reference must carry an explicit tag or digest, the workdir must
// be absolute and must equal or be an ancestor of the payload destination,
// and the manifest path must be relative so it resolves under the workdir.
func (d *Descriptor) Validate() error {
	if d.Base == "" {
		return fmt.Errorf("%w: base image is required", ErrDescriptor)
	}
	if err := validateBase(d.Base); err != nil {
		return err
	}

	if d.App == "" {
		return fmt.Errorf("%w: app directory is required", ErrDescriptor)
	}

	if !path.IsAbs(d.Workdir) {
		return fmt.Errorf("%w: workdir %q must be absolute", ErrDescriptor, d.Workdir)
	}
	if !path.IsAbs(d.Dest) {
		return fmt.Errorf("%w: dest %q must be absolute", ErrDescriptor, d.Dest)
	}
	if !isPathPrefix(d.Workdir, d.Dest) {
		return fmt.Errorf("%w: workdir %q must equal or contain dest %q", ErrDescriptor, d.Workdir, d.Dest)
	}

	if path.IsAbs(d.Requirements) {
		return fmt.Errorf("%w: requirements %q must be relative to the workdir", ErrDescriptor, d.Requirements)
	}

	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrDescriptor, d.Port)
	}

	for k := range d.Env {
		if k == "" || strings.ContainsRune(k, '=') {
			return fmt.Errorf("%w: invalid env key %q", ErrDescriptor, k)
		}
	}

	return nil
}

// Returns the absolute in-image path of the dependency manifest.
func (d *Descriptor) RequirementsPath() string {
	return path.Join(d.Workdir, d.Requirements)
}

// Checks that a base reference parses and pins a tag or digest.
//
// An implied tag is rejected: dependency resolution is only reproducible when
// the base pins a specific interpreter version.
func validateBase(base string) error {
	ref, err := name.ParseReference(base)
	if err != nil {
		return fmt.Errorf("%w: base %q: %w", ErrDescriptor, base, err)
	}

	if _, ok := ref.(name.Digest); ok {
		return nil
	}

	if !strings.HasSuffix(base, ":"+ref.Identifier()) {
		return fmt.Errorf("%w: base %q must pin a tag or digest", ErrDescriptor, base)
	}

	return nil
}

// Reports whether prefix equals dir or is one of its ancestors.
//
// Both arguments must be clean absolute slash-separated paths.
func isPathPrefix(prefix, dir string) bool {
	prefix = path.Clean(prefix)
	dir = path.Clean(dir)

	if prefix == dir || prefix == "/" {
		return true
	}
	return strings.HasPrefix(dir, prefix+"/")
}
