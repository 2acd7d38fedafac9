//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"b3-dataflow/internal/app"
	"b3-dataflow/internal/metrics"
)

// InitializeApp builds App via Wire.
// Caller must call the returned cleanup when done.
func InitializeApp(ctx context.Context, path app.ConfigPath) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideMetrics,
		wire.Bind(new(metrics.Collector), new(*metrics.Prometheus)),
		app.ProvideProvider,
		app.ProvideBroker,
		app.ProvideStores,
		app.ProvideExtractor,
		app.ProvideLocalExtractor,
		app.ProvideTransformer,
		app.ProvideLocalRunner,
		app.ProvideRunner,
		app.ProvideWorker,
		app.ProvideTrigger,
		app.ProvideUploader,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
