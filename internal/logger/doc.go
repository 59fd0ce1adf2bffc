// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger writing to stderr with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Orchestrators, the gateway and the mock API accept a context and extract
// the logger from it, so every flash, remote call and poll is logged with
// the name of the component that produced it.
package logger
