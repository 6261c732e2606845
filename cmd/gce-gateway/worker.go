// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	"github.com/stackbridge/gce-gateway/pkg/clients"
	"github.com/stackbridge/gce-gateway/pkg/core/config"
	"github.com/stackbridge/gce-gateway/pkg/gateway/backend"
	"github.com/stackbridge/gce-gateway/pkg/gateway/translators"
	"github.com/stackbridge/gce-gateway/pkg/metrics"
	"github.com/stackbridge/gce-gateway/pkg/operations"
	"github.com/stackbridge/gce-gateway/pkg/sidecar"
	asynqutils "github.com/stackbridge/gce-gateway/pkg/utils/asynq"
)

// defaultMetricsAddress is the address on which the worker serves its
// metrics, unless configured otherwise.
const defaultMetricsAddress = ":6080"

// NewWorkerCommand returns a new command for interfacing with the workers.
func NewWorkerCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "worker",
		Usage:   "worker operations",
		Aliases: []string{"w"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "number of concurrent workers to start",
				EnvVars: []string{"CONCURRENCY_LEVEL"},
				Value:   10,
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
				Usage:   "start the workers",
				Aliases: []string{"s"},
				Action: func(ctx *cli.Context) error {
					return startWorker(ctx)
				},
			},
		},
	}

	return cmd
}

// startWorker starts the worker processing deferred operation steps.
func startWorker(ctx *cli.Context) error {
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

	// Creating the translator set registers the operation probes and
	// steps, which the task handler below resumes.
	backends := backend.New(conf.Gateway)
	store := sidecar.NewStore(db)
	translators.New(conf.Gateway, backends, store, ops)

	concurrency := conf.Worker.Concurrency
	if ctx.IsSet("concurrency") || concurrency <= 0 {
		concurrency = ctx.Int("concurrency")
	}

	server, mux := newStepWorker(ctx.Context, conf, logger, concurrency)

	metricsAddr := conf.Worker.MetricsAddress
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddress
	}

	metricsSrv := metrics.NewServer(metricsAddr, "/metrics")
	defer func() {
		if err := metricsSrv.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shutdown metrics server", "reason", err)
		}
	}()

	go func() {
		slog.Info("starting metrics server", "address", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "reason", err)
		}
	}()

	slog.Info("starting worker", "concurrency", concurrency)

	return server.Run(mux)
}

// newStepWorker builds the asynq server and mux, which process the deferred
// operation steps.
func newStepWorker(ctx context.Context, conf *config.Config, logger *slog.Logger, concurrency int) (*asynq.Server, *asynq.ServeMux) {
	server := asynq.NewServer(
		newRedisClientOpt(conf),
		asynq.Config{
			Concurrency: concurrency,
			BaseContext: func() context.Context { return ctx },
		},
	)

	mux := asynq.NewServeMux()
	mux.Use(
		asynqutils.NewLoggerMiddleware(logger),
		asynqutils.NewMeasuringMiddleware(),
	)
	mux.HandleFunc(operations.TaskOperationStep, operations.HandleOperationStepTask)

	return server, mux
}
