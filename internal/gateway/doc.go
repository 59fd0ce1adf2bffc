// Package gateway wraps every exchange with the remote API.
//
// A Gateway sends a payload to an endpoint path through a Transport (HTTP
// JSON or gRPC), unwraps the {status, data, message} envelope and routes
// failures into the flash center: transport failures get the generic status
// message, application failures get the server's message verbatim. Each
// failed call produces exactly one flash; callers only run local cleanup.
package gateway
