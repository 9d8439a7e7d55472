package main

import (
	"os"

	"github.com/032-extremist/redcart-checkout/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
