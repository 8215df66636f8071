package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wharfhq/wharfd/internal/descriptor"
)

var ErrProtocol = errors.New("protocol error")

// Command names carried in envelopes.
type Command string

const (
	CmdBuild    Command = "build"    // Run a build.
	CmdStatus   Command = "status"   // Query daemon status.
	CmdShutdown Command = "shutdown" // Request daemon shutdown.
	CmdOK       Command = "ok"       // Successful response.
	CmdError    Command = "error"    // Failure response.
)

// A single wire message: a command plus an optional payload.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Asks the daemon to build a descriptor.
//
// The descriptor is sent inline, already parsed and validated by the client,
// so the daemon never needs access to the client's descriptor file. Paths
// must be absolute: the daemon resolves nothing against its own working
// directory.
type BuildRequest struct {
	Descriptor *descriptor.Descriptor `json:"descriptor"`
	Name       string                 `json:"name"`                // Build name, used for container IDs.
	Output     string                 `json:"output"`              // Absolute output directory.
	Context    string                 `json:"context"`             // Absolute directory for resolving the payload path.
	Platforms  []string               `json:"platforms,omitempty"` // Target platforms. Empty uses the daemon host's.
}

// Successful build response.
type BuildResult struct {
	Output string `json:"output"` // Directory containing the exported image.
}

// Daemon status response.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Builds  int    `json:"builds"`
}

// Failure response.
type ErrorResult struct {
	Message string `json:"message"`
}

// Serializes a command and payload into an envelope.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		env.Payload = data
	}

	return json.Marshal(env)
}

// Parses an envelope from a wire message, returning the envelope and its raw
// payload.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if env.Command == "" {
		return nil, nil, fmt.Errorf("%w: missing command", ErrProtocol)
	}
	return &env, env.Payload, nil
}

// Parses a typed payload from its raw form.
func DecodePayload[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrProtocol)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return &v, nil
}
