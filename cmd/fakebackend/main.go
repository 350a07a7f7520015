package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/echosmith/echosmith/internal/fakebackend"
	"github.com/echosmith/echosmith/supervisor"
)

func main() {
	app := &cli.App{
		Name:  "fakebackend",
		Usage: "in-memory stand-in for the EchoSmith transcription backend",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "The TCP port to listen on.",
				EnvVars: []string{supervisor.EnvPort},
				Value:   supervisor.DevPort,
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "The bearer token to require on the API surface. Empty disables auth.",
				EnvVars: []string{supervisor.EnvToken},
			},
			&cli.DurationFlag{
				Name:  "progress-interval",
				Usage: "Delay between simulated progress updates.",
				Value: 200 * time.Millisecond,
			},
		},
		Action: func(ctx *cli.Context) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer logger.Sync()

			server, err := fakebackend.NewServer(
				fakebackend.WithLogger(logger),
				fakebackend.WithToken(ctx.String("token")),
				fakebackend.WithListenAddr(fmt.Sprintf("127.0.0.1:%d", ctx.Int("port"))),
				fakebackend.WithProgressInterval(ctx.Duration("progress-interval")),
			)
			if err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				server.Stop()
			}()

			return server.Run()
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
