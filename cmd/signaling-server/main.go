package main

import (
	"github.com/nextgenhealthcare/signaling-server/internal/signal"
	"github.com/nextgenhealthcare/signaling-server/pkg/protocol"
	"github.com/nextgenhealthcare/signaling-server/pkg/service"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.Provide(
			signal.NewRegistry,
			signal.NewNotifier,
			signal.NewMetrics,

			protocol.AsHttpController(signal.NewSignalController),
		),

		service.LoggerModule,
		service.HttpModule,
	).Run()
}
