// Package mockapi implements secpi-mockapi: an in-memory stand-in for the
// appliance's remote API. It serves the envelope endpoints over HTTP and,
// when configured, over the Console gRPC service, and persists every change
// to a JSON records file.
package mockapi
