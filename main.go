package main

import (
	"fmt"
	"os"

	"github.com/rami3l/loxbc/cmd"
)

func main() {
	app := cmd.App()
	if err := app.Execute(); err != nil {
		if exitErr, ok := err.(cmd.ExitError); ok {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
