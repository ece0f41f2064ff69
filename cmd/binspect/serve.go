package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/binspect/internal/api"
	"github.com/samcharles93/binspect/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		logLevel    string
		logFormat   string
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the inspection REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn or error",
				Value:       "info",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (pretty, json, text)",
				Value:       "json",
				Destination: &logFormat,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			applyServeConfig(c, cfg, &addr, &logLevel, &logFormat)

			log := newLogger(os.Stderr, logFormat, logger.ParseLevel(logLevel))

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			api.NewServer().Register(e)

			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// newLogger selects the slog handler for the serve command. JSON is the
// deployment default; pretty is for watching a server from a terminal.
func newLogger(w io.Writer, format string, level slog.Level) logger.Logger {
	switch format {
	case "pretty":
		return logger.Pretty(w, level)
	case "text":
		return logger.Text(w, level)
	default:
		return logger.JSON(w, level)
	}
}
