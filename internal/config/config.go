package config

import (
	"context"
	"os"

	"github.com/caarlos0/env"
	"github.com/sirupsen/logrus"
)

func init() {
	if err := env.Parse(&Config); err != nil {
		logrus.Warnf("cannot parse environment: %s", err)
	}
	Config.DryRun = true

	setupLogrus()

	if Config.OpenTelemetryEnabled {
		if err := setupTraceProvider(context.Background()); err != nil {
			panic(err)
		}
	}
}

func setupLogrus() {
	level, err := logrus.ParseLevel(Config.LogrusLevel)
	if err != nil {
		logrus.WithField("err", err).Fatalf("failed to set logrus level:%s", Config.LogrusLevel)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	switch Config.LogrusFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	default:
		logrus.Warnf("unexpected logrus format: %s, should be one of: text, json", Config.LogrusFormat)
	}
}
