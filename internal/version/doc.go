// Package version reports which secpi-console build is running.
//
// The values are stamped by the release build through -ldflags; the
// `version` subcommand prints them and NewCollector exports them to the
// mock API metrics as secpi_mockapi_build_info.
package version
