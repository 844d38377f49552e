package main

import (
	"context"
	"os"

	"github.com/smazurov/taskmaster/cmd"
)

func main() {
	if err := cmd.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
