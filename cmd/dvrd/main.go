// Command dvrd runs the dvr daemon in the foreground for service managers.
// It is equivalent to "dvr daemon"; the configuration file is taken from
// DVR_CONFIG and the log level from DVR_LOG_LEVEL when set.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"dvr/internal/config"
	"dvr/internal/daemonrun"
)

const (
	envConfigPath = "DVR_CONFIG"
	envLogLevel   = "DVR_LOG_LEVEL"
)

func main() {
	cfg, _, _, err := config.Load(configPathFromEnv())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, runOptionsFromEnv()); err != nil {
		log.Fatalf("dvrd: %v", err)
	}
}

func configPathFromEnv() string {
	return strings.TrimSpace(os.Getenv(envConfigPath))
}

func runOptionsFromEnv() daemonrun.Options {
	return daemonrun.Options{LogLevel: strings.TrimSpace(os.Getenv(envLogLevel))}
}
