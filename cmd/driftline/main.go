package main

import (
	"os"

	"github.com/driftline/driftline/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
