package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/binspect/internal/inspect"
	"github.com/samcharles93/binspect/pkg/bindec"
)

func inspectCmd() *cli.Command {
	var (
		output    string
		format    string
		dumpLimit int64
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode a binary container and print its structure",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output style: text, json or yaml",
				Value:       "text",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "force a format driver instead of signature detection",
				Destination: &format,
			},
			&cli.Int64Flag{
				Name:        "dump-limit",
				Usage:       "max bytes rendered per hexdump region",
				Value:       bindec.DefaultDumpLimit,
				Destination: &dumpLimit,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("error: missing input file", 1)
			}

			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read config: %v", err), 1)
			}
			applyInspectConfig(c, cfg, &output, &format, &dumpLimit)

			src, err := inspect.OpenSource(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open %q: %v", path, err), 1)
			}
			defer func() { _ = src.Close() }()

			switch output {
			case "text":
				_, err = inspect.Run(src.Bytes(), format, bindec.NewTextSink(os.Stdout), int(dumpLimit))
			case "json", "yaml":
				sink := bindec.NewTreeSink()
				_, err = inspect.Run(src.Bytes(), format, sink, int(dumpLimit))
				if perr := printTree(sink.Root(), output); perr != nil {
					return cli.Exit(fmt.Sprintf("error: render output: %v", perr), 1)
				}
			default:
				return cli.Exit(fmt.Sprintf("error: unknown output style %q", output), 1)
			}
			if err != nil {
				// Whatever decoded before the failure has already been printed.
				return cli.Exit(fmt.Sprintf("error: decode %q: %v", path, err), 1)
			}
			return nil
		},
	}
}

func printTree(root *bindec.Map, style string) error {
	var out []byte
	var err error
	if style == "json" {
		out, err = json.MarshalIndent(root, "", "  ")
	} else {
		out, err = yaml.Marshal(root)
	}
	if err != nil {
		return err
	}
	if style == "json" {
		out = append(out, '\n')
	}
	_, err = os.Stdout.Write(out)
	return err
}
