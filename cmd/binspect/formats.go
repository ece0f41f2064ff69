package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/binspect/internal/inspect"
)

func formatsCmd() *cli.Command {
	return &cli.Command{
		Name:  "formats",
		Usage: "List the registered format drivers",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, d := range inspect.Drivers() {
				fmt.Printf("%-12s %s\n", d.Name, d.Order)
			}
			return nil
		},
	}
}
