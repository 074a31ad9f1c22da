package main

import (
	"os"

	appcli "invoicer/internal/cli"
)

func main() {
	appcli.LoadEnvFile()
	logger := appcli.SetupLogger(os.Getenv("LOG_LEVEL"))

	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		appcli.Fatal(logger, "Command failed", err)
	}
}
