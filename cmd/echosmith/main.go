package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/echosmith/echosmith/backend"
	"github.com/echosmith/echosmith/launch"
	"github.com/echosmith/echosmith/supervisor"
)

func main() {
	app := &cli.App{
		Name:  "echosmith",
		Usage: "headless EchoSmith shell host: supervises the transcription backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Runtime mode. One of [dev,prod].",
				Value: "dev",
			},
			&cli.StringFlag{
				Name:  "project-dir",
				Usage: "Directory to search upward from for the backend source (dev mode). Defaults to the working directory.",
			},
			&cli.StringFlag{
				Name:  "resource-dir",
				Usage: "Resource directory containing the bundled backend executable (prod mode). Defaults to the working directory.",
			},
			&cli.BoolFlag{
				Name:  "check-health",
				Usage: "Query the backend's health endpoint once it is ready.",
				Value: true,
			},
		},
		Action: func(ctx *cli.Context) error {
			mode, err := launch.ParseMode(ctx.String("mode"))
			if err != nil {
				return err
			}

			logger, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer logger.Sync()

			resolver := launch.NewResolver(mode, ctx.String("project-dir"), ctx.String("resource-dir"))
			sup, err := supervisor.New(mode, resolver, supervisor.WithLogger(logger))
			if err != nil {
				return err
			}

			cfg, err := sup.Start(context.Background())
			if err != nil {
				// A partially-functional shell is worse than a clear failure.
				return fmt.Errorf("backend startup failed: %w", err)
			}

			// The shell's UI layer reads the backend contract from stdout.
			enc := json.NewEncoder(os.Stdout)
			if err := enc.Encode(cfg); err != nil {
				sup.Stop()
				return fmt.Errorf("writing backend config: %w", err)
			}

			if ctx.Bool("check-health") {
				client := backend.NewClient(logger.Sugar(), cfg.URL, cfg.Token)
				healthCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				health, err := client.Health(healthCtx)
				cancel()
				if err != nil {
					logger.Sugar().Warnf("backend health check failed: %s", err)
				} else {
					logger.Sugar().Infof("backend health: %s (ffmpeg=%t models=%t)", health.Status, health.FFmpeg, health.Models)
				}
			}

			// Suppress exit until the backend has been signaled, then exit 0.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			sig := <-sigCh
			logger.Sugar().Infof("received %s, stopping backend", sig)
			sup.Stop()
			return nil
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
