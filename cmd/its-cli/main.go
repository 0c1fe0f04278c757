package main

import (
	"os"

	"github.com/its-lang/its-cli/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
