// Package console implements the gRPC carriage of the remote API envelope.
//
// The service has a single unary method, Call, whose request and response
// are google.protobuf.Struct values: the request holds the endpoint path and
// its payload, the response holds the {status, data, message} envelope. No
// generated stubs are needed; the service descriptor is declared by hand.
package console
