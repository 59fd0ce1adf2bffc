// Package integration boots the mock API and drives it with the console over both transports.
package integration
