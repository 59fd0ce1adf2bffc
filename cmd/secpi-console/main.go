package main

import "github.com/oshokin/secpi-console/cmd/secpi-console/cmd"

func main() {
	cmd.Execute()
}
