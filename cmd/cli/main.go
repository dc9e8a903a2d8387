package main

import (
	"os"

	"github.com/airqo-platform/gateway/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
