// Command easyrepostd runs the EasyRepost task-scheduling engine: the
// download and upload schedulers, the WebSub/RSS subscription front ends,
// and the HTTP surface over them, assembled as a single
// github.com/GoCodeAlone/modular application the way
// examples/basic-app/main.go assembles webserver/router/api modules.
package main

import (
	"fmt"
	"os"

	"github.com/GoCodeAlone/modular"
	"github.com/GoCodeAlone/modular/feeders"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/config"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/logging"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--generate-config" {
		format := "toml"
		if len(os.Args) > 2 {
			format = os.Args[2]
		}
		outputFile := "config-sample." + format
		if len(os.Args) > 3 {
			outputFile = os.Args[3]
		}
		if err := modular.SaveSampleConfig(config.Default(), format, outputFile); err != nil {
			fmt.Printf("error generating sample config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("sample config generated at %s\n", outputFile)
		os.Exit(0)
	}

	configPath := "easyrepostd.toml"
	if v := os.Getenv("EASYREPOSTD_CONFIG"); v != "" {
		configPath = v
	}
	modular.ConfigFeeders = []modular.Feeder{
		feeders.NewTomlFeeder(configPath),
		feeders.NewEnvFeeder(),
	}

	logger, err := logging.New()
	if err != nil {
		fmt.Printf("failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app, err := modular.NewApplication(
		modular.WithLogger(logger),
		modular.WithConfigProvider(modular.NewStdConfigProvider(config.Default())),
		modular.WithModules(newEngineModule()),
	)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		app.Logger().Error("application error", "error", err)
		os.Exit(1)
	}
}
