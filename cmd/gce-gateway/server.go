// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/stackbridge/gce-gateway/pkg/clients"
	"github.com/stackbridge/gce-gateway/pkg/core/config"
	"github.com/stackbridge/gce-gateway/pkg/gateway/api"
	"github.com/stackbridge/gce-gateway/pkg/gateway/backend"
	"github.com/stackbridge/gce-gateway/pkg/gateway/translators"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
)

// defaultListenAddress is the address on which the API service listens,
// unless configured otherwise.
const defaultListenAddress = ":8787"

// NewServerCommand returns a new command for interfacing with the API server.
func NewServerCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "server",
		Usage:   "API server operations",
		Aliases: []string{"s"},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "embedded-worker",
				Usage: "run an embedded worker alongside the API server",
				Value: false,
			},
		},
		Before: func(ctx *cli.Context) error {
			conf := getConfig(ctx)
			validatorFuncs := []func(c *config.Config) error{
				validateDBConfig,
				validateRedisConfig,
				validateKeystoneConfig,
			}

			for _, validator := range validatorFuncs {
				if err := validator(conf); err != nil {
					return err
				}
			}

			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:    "start",
				Usage:   "start the API server",
				Aliases: []string{"s"},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					logger, err := newLogger(conf)
					if err != nil {
						return err
					}
					slog.SetDefault(logger)

					db := newDB(conf)
					defer db.Close()
					clients.SetDB(db)

					asynqClient := newAsynqClient(conf)
					defer asynqClient.Close()
					clients.SetAsynq(asynqClient)

					configureFactory(conf)

					ops := operations.NewManager(db)
					operations.SetManager(ops)

					backends := backend.New(conf.Gateway)
					store := sidecar.NewStore(db)
					set := translators.New(conf.Gateway, backends, store, ops)

					if ctx.Bool("embedded-worker") {
						concurrency := conf.Worker.Concurrency
						if concurrency <= 0 {
							concurrency = 10
						}

						worker, workerMux := newStepWorker(ctx.Context, conf, logger, concurrency)
						defer worker.Shutdown()

						go func() {
							slog.Info("starting embedded worker", "concurrency", concurrency)
							if err := worker.Run(workerMux); err != nil {
								slog.Error("embedded worker failed", "reason", err)
							}
						}()
					}

					addr := conf.API.Address
					if addr == "" {
						addr = defaultListenAddress
					}

					srv := &http.Server{
						Addr:              addr,
						Handler:           api.NewRouter(conf, set, ops),
						ReadHeaderTimeout: time.Second * 30,
					}

					slog.Info(
						"starting server",
						"address", addr,
						"api", api.BasePath,
						"metrics", "/metrics",
					)

					return srv.ListenAndServe()
				},
			},
		},
	}

	return cmd
}
