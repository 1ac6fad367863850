package main

import (
	"context"
	"flag"
	"io"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	listenAddress FlagType = iota
	servicePort

	configPath
	opaPath

	logFormat
	clientDebug
)

type AppConfig struct {
	facilitiesConfig io.ReadCloser
	opaConfig        io.ReadCloser
}

func DefaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "",
		servicePort:   "8080",

		configPath: "/opt/diwise/config/facilities.yaml",
		opaPath:    "/opt/diwise/config/authz.rego",

		logFormat:   "json",
		clientDebug: "false",
	}
}

// parseExternalConfig applies environment variables on top of the defaults
// and command line flags on top of both.
func parseExternalConfig(ctx context.Context, flags FlagMap) FlagMap {
	fromEnv := map[FlagType]string{
		listenAddress: "LISTEN_ADDRESS",
		servicePort:   "SERVICE_PORT",
		configPath:    "FACILITIES_CONFIG_PATH",
		opaPath:       "POLICY_PATH",
		logFormat:     "LOG_FORMAT",
		clientDebug:   "HAL_CLIENT_DEBUG",
	}

	for f, name := range fromEnv {
		flags[f] = env.GetVariableOrDefault(ctx, name, flags[f])
	}

	stringFlag := func(f FlagType, name, usage string) {
		flag.Func(name, usage, func(value string) error {
			flags[f] = value
			return nil
		})
	}

	stringFlag(servicePort, "port", "port to listen for connections on")
	stringFlag(configPath, "config", "path to the facilities configuration file")
	stringFlag(opaPath, "policies", "path to the authorization policies")

	flag.Parse()

	return flags
}
