package runtime

import (
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestApplyExportConfig(t *testing.T) {
	base := func() *ocispec.Image {
		return &ocispec.Image{
			Config: ocispec.ImageConfig{
				Env:        []string{"PATH=/usr/bin"},
				Entrypoint: []string{"/start.sh"},
				Cmd:        []string{"serve"},
			},
		}
	}

	t.Run("workdir and env", func(t *testing.T) {
		config := base()
		applyExportConfig(config, ExportConfig{
			Workdir: "/app",
			Env:     map[string]string{"B": "2", "A": "1"},
		})

		if config.Config.WorkingDir != "/app" {
			t.Fatalf("WorkingDir = %q, want /app", config.Config.WorkingDir)
		}

		want := []string{"PATH=/usr/bin", "A=1", "B=2"}
		if len(config.Config.Env) != len(want) {
			t.Fatalf("Env = %v, want %v", config.Config.Env, want)
		}
		for i, w := range want {
			if config.Config.Env[i] != w {
				t.Errorf("Env[%d] = %q, want %q", i, config.Config.Env[i], w)
			}
		}
	})

	t.Run("port", func(t *testing.T) {
		config := base()
		applyExportConfig(config, ExportConfig{Port: 80})

		if _, ok := config.Config.ExposedPorts["80/tcp"]; !ok {
			t.Fatalf("ExposedPorts = %v, want 80/tcp", config.Config.ExposedPorts)
		}
	})

	t.Run("entrypoint inherited by default", func(t *testing.T) {
		config := base()
		applyExportConfig(config, ExportConfig{Workdir: "/app"})

		if len(config.Config.Entrypoint) != 1 || config.Config.Entrypoint[0] != "/start.sh" {
			t.Fatalf("Entrypoint = %v, want inherited /start.sh", config.Config.Entrypoint)
		}
		if len(config.Config.Cmd) != 1 {
			t.Fatalf("Cmd = %v, want inherited", config.Config.Cmd)
		}
	})

	t.Run("entrypoint override clears cmd", func(t *testing.T) {
		config := base()
		applyExportConfig(config, ExportConfig{Entrypoint: []string{"/custom"}})

		if len(config.Config.Entrypoint) != 1 || config.Config.Entrypoint[0] != "/custom" {
			t.Fatalf("Entrypoint = %v, want [/custom]", config.Config.Entrypoint)
		}
		if config.Config.Cmd != nil {
			t.Fatalf("Cmd = %v, want nil after override", config.Config.Cmd)
		}
	})

	t.Run("zero config is a no-op", func(t *testing.T) {
		config := base()
		applyExportConfig(config, ExportConfig{})

		if config.Config.WorkingDir != "" {
			t.Fatalf("WorkingDir = %q, want empty", config.Config.WorkingDir)
		}
		if config.Config.ExposedPorts != nil {
			t.Fatalf("ExposedPorts = %v, want nil", config.Config.ExposedPorts)
		}
	})
}

func TestManifestGCLabels(t *testing.T) {
	m := ocispec.Manifest{
		Config: ocispec.Descriptor{
			Digest: digest.FromString("config"),
		},
		Layers: []ocispec.Descriptor{
			{Digest: digest.FromString("layer0")},
			{Digest: digest.FromString("layer1")},
		},
	}

	labels := manifestGCLabels(m)

	configLabel := labels["containerd.io/gc.ref.content.config"]
	if configLabel != m.Config.Digest.String() {
		t.Fatalf("config label = %q, want %q", configLabel, m.Config.Digest.String())
	}

	for i, layer := range m.Layers {
		key := "containerd.io/gc.ref.content.l." + string(rune('0'+i))
		got := labels[key]
		if got != layer.Digest.String() {
			t.Fatalf("labels[%q] = %q, want %q", key, got, layer.Digest.String())
		}
	}

	if len(labels) != 3 {
		t.Fatalf("len(labels) = %d, want 3", len(labels))
	}
}

func TestIndexGCLabels(t *testing.T) {
	idx := ocispec.Index{
		Manifests: []ocispec.Descriptor{
			{Digest: digest.FromString("m0")},
			{Digest: digest.FromString("m1")},
		},
	}

	labels := indexGCLabels(idx)
	if len(labels) != 2 {
		t.Fatalf("len(labels) = %d, want 2", len(labels))
	}
	if labels["containerd.io/gc.ref.content.m.0"] != idx.Manifests[0].Digest.String() {
		t.Fatal("m.0 label mismatch")
	}
	if labels["containerd.io/gc.ref.content.m.1"] != idx.Manifests[1].Digest.String() {
		t.Fatal("m.1 label mismatch")
	}
}
