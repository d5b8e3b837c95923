package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/groundpeer/cmd/gpeer-controller/app/options"
	"github.com/autopeer-io/groundpeer/pkg/app"
	"github.com/autopeer-io/groundpeer/pkg/log"
)

const (
	commandName = "gpeer-controller"
	commandDesc = `The Groundpeer controller runs on the ground station. It keeps the
station's copy of each vehicle's configuration in sync with what the vehicle
reports, drives the pairing lifecycle of the radio link and repairs the link
when a change on the vehicle requires it.`
)

func NewApp() *app.App {
	opts := options.NewControllerOptions()
	application := app.NewApp(
		commandName,
		"Launch the Groundpeer ground station controller",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithWatchConfig(),
		app.WithSubCommands(newInspectCommand()),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.ControllerOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		log.Init(opts.Log)

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		station, err := cfg.NewStation()
		if err != nil {
			return fmt.Errorf("failed to create station: %w", err)
		}

		return station.Run(ctx)
	}
}
