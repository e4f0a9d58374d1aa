package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/runner/internal/filestore"
	"github.com/programme-lv/runner/internal/worker"
	"github.com/urfave/cli/v3"
)

func listenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "serve execution requests from the SQS request queue",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Queue.RequestURL == "" {
				return errors.New("queue.request_url is not configured")
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.Queue.AWSRegion))
			if err != nil {
				return fmt.Errorf("unable to load SDK config: %w", err)
			}

			files, err := filestore.New(a.cfg.FileStore.Dir, nil, a.logger)
			if err != nil {
				return err
			}

			var nc *nats.Conn
			if a.cfg.Nats.URL != "" {
				nc, err = nats.Connect(a.cfg.Nats.URL, nats.Name("runner"))
				if err != nil {
					return fmt.Errorf("failed to connect to NATS: %w", err)
				}
				defer nc.Drain()
			}

			w := worker.New(worker.Options{
				Queue:       sqs.NewFromConfig(awsCfg),
				RequestUrl:  a.cfg.Queue.RequestURL,
				ResponseUrl: a.cfg.Queue.ResponseURL,
				Strategies:  a.strategies,
				Files:       files,
				Nats:        nc,
				Concurrency: a.cfg.Queue.Concurrency,
				Logger:      a.logger,
			})
			return w.Run(ctx)
		},
	}
}
