package protocol

import (
	"errors"
	"testing"

	"github.com/wharfhq/wharfd/internal/descriptor"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := &BuildRequest{
		Descriptor: &descriptor.Descriptor{
			Base:    "python:3.9-slim",
			App:     "app",
			Workdir: "/app",
		},
		Name:      "svc",
		Output:    "/tmp/dist",
		Context:   "/srv/project",
		Platforms: []string{"linux/amd64"},
	}

	data, err := Encode(CmdBuild, req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != CmdBuild {
		t.Fatalf("command = %q, want %q", env.Command, CmdBuild)
	}

	got, err := DecodePayload[BuildRequest](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Descriptor.Base != req.Descriptor.Base {
		t.Errorf("base = %q, want %q", got.Descriptor.Base, req.Descriptor.Base)
	}
	if got.Name != req.Name || got.Output != req.Output || got.Context != req.Context {
		t.Errorf("request = %+v, want %+v", got, req)
	}
	if len(got.Platforms) != 1 || got.Platforms[0] != "linux/amd64" {
		t.Errorf("platforms = %v", got.Platforms)
	}
}

func TestEncodeNilPayload(t *testing.T) {
	data, err := Encode(CmdShutdown, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != CmdShutdown {
		t.Fatalf("command = %q, want %q", env.Command, CmdShutdown)
	}
	if len(payload) != 0 {
		t.Fatalf("payload = %q, want empty", payload)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"missing command", `{"payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("error = %v, want ErrProtocol", err)
			}
		})
	}
}

func TestDecodePayloadMissing(t *testing.T) {
	if _, err := DecodePayload[BuildRequest](nil); err == nil {
		t.Fatal("expected error for missing payload, got nil")
	}
}
