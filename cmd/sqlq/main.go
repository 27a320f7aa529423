package main

import (
	"os"

	"sqlite-browser/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
