package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/cli"
)

func main() {
	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Message)
		os.Exit(err.Code)
	}
}
