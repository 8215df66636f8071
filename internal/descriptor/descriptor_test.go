package descriptor

import (
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	d, err := Parse([]byte("base: python:3.9-slim\napp: ./app\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Workdir != DefaultWorkdir {
		t.Errorf("workdir = %q, want %q", d.Workdir, DefaultWorkdir)
	}
	if d.Dest != DefaultWorkdir {
		t.Errorf("dest = %q, want %q", d.Dest, DefaultWorkdir)
	}
	if d.Requirements != DefaultRequirements {
		t.Errorf("requirements = %q, want %q", d.Requirements, DefaultRequirements)
	}
}

func TestParseFull(t *testing.T) {
	doc := `
base: tiangolo/uvicorn-gunicorn-fastapi:python3.9
app: ./app
workdir: /srv
dest: /srv/app
requirements: app/requirements.txt
env:
  LOG_LEVEL: info
port: 80
entrypoint: ["/start.sh"]
`
	d, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Base != "tiangolo/uvicorn-gunicorn-fastapi:python3.9" {
		t.Errorf("base = %q", d.Base)
	}
	if d.Workdir != "/srv" {
		t.Errorf("workdir = %q, want /srv", d.Workdir)
	}
	if d.Dest != "/srv/app" {
		t.Errorf("dest = %q, want /srv/app", d.Dest)
	}
	if d.Env["LOG_LEVEL"] != "info" {
		t.Errorf("env = %v, want LOG_LEVEL=info", d.Env)
	}
	if d.Port != 80 {
		t.Errorf("port = %d, want 80", d.Port)
	}
	if len(d.Entrypoint) != 1 || d.Entrypoint[0] != "/start.sh" {
		t.Errorf("entrypoint = %v, want [/start.sh]", d.Entrypoint)
	}
}

func TestParseUnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("base: python:3.9\napp: ./app\nworkdri: /app\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestParseRequirementsPath(t *testing.T) {
	d, err := Parse([]byte("base: python:3.9\napp: ./app\nworkdir: /app\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.RequirementsPath(); got != "/app/requirements.txt" {
		t.Fatalf("RequirementsPath() = %q, want /app/requirements.txt", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Descriptor {
		return &Descriptor{
			Base:         "python:3.9-slim",
			App:          "./app",
			Dest:         "/app",
			Workdir:      "/app",
			Requirements: "requirements.txt",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Descriptor)
		wantErr string
	}{
		{
			name:   "valid pinned tag",
			mutate: func(d *Descriptor) {},
		},
		{
			name: "valid digest",
			mutate: func(d *Descriptor) {
				d.Base = "python@sha256:ab21e3e0392e12e0e7d5b1e3e7a6e46f8f5c5a3aa9e0c6d3e7e2af1a2b3c4d5e"
			},
		},
		{
			name:    "missing base",
			mutate:  func(d *Descriptor) { d.Base = "" },
			wantErr: "base image is required",
		},
		{
			name:    "implied tag",
			mutate:  func(d *Descriptor) { d.Base = "python" },
			wantErr: "must pin a tag",
		},
		{
			name:    "missing app",
			mutate:  func(d *Descriptor) { d.App = "" },
			wantErr: "app directory is required",
		},
		{
			name:    "relative workdir",
			mutate:  func(d *Descriptor) { d.Workdir = "app" },
			wantErr: "must be absolute",
		},
		{
			name: "workdir outside dest",
			mutate: func(d *Descriptor) {
				d.Workdir = "/srv"
				d.Dest = "/app"
			},
			wantErr: "must equal or contain",
		},
		{
			name:    "absolute requirements",
			mutate:  func(d *Descriptor) { d.Requirements = "/etc/requirements.txt" },
			wantErr: "must be relative",
		},
		{
			name:    "port out of range",
			mutate:  func(d *Descriptor) { d.Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "env key with equals",
			mutate:  func(d *Descriptor) { d.Env = map[string]string{"A=B": "x"} },
			wantErr: "invalid env key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)

			err := d.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestIsPathPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		dir    string
		want   bool
	}{
		{"/app", "/app", true},
		{"/app", "/app/src", true},
		{"/", "/anything", true},
		{"/app", "/application", false},
		{"/srv", "/app", false},
		{"/app/", "/app/src", true},
	}

	for _, tt := range tests {
		if got := isPathPrefix(tt.prefix, tt.dir); got != tt.want {
			t.Errorf("isPathPrefix(%q, %q) = %v, want %v", tt.prefix, tt.dir, got, tt.want)
		}
	}
}
