// Package protocol defines the wire format between the wharf CLI and the
// daemon.
//
// Messages are newline-delimited JSON envelopes carrying a command name and
// an optional payload. Each connection holds a single request-response
// exchange: the client sends one envelope, the daemon answers with CmdOK and
// a result payload or CmdError and a diagnostic, and the connection closes.
package protocol
