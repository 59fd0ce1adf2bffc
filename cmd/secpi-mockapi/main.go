package main

import "github.com/oshokin/secpi-console/cmd/secpi-mockapi/cmd"

func main() {
	cmd.Execute()
}
