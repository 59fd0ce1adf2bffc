// Package console implements the secpi-console commands: it opens a session
// against the remote API and drives the orchestrators on behalf of the CLI.
package console
