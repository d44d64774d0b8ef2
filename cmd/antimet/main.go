package main

import (
	"os"

	"github.com/turtacn/antimet/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
