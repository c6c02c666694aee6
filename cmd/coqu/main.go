package main

import (
	"os"

	"github.com/Chandra-mohn/coqu/internal/adapters/driving/cli"
)

func main() {
	os.Exit(cli.Execute())
}
