package config

import (
	"net/http"

	"github.com/phyber/negroni-gzip/gzip"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// SetupGlobalMiddleware wraps the webhook handler with the global middleware
func SetupGlobalMiddleware(handler http.Handler) http.Handler {
	n := negroni.New()

	if Config.MiddlewareGzipEnabled {
		n.Use(gzip.Gzip(gzip.DefaultCompression))
	}

	if Config.MiddlewareVerboseLoggerEnabled {
		n.Use(negroni.NewLogger())
	}

	if Config.CORSEnabled {
		n.Use(cors.New(cors.Options{
			AllowedOrigins: Config.CORSAllowedOrigins,
			AllowedHeaders: Config.CORSAllowedHeaders,
			AllowedMethods: Config.CORSAllowedMethods,
		}))
	}

	if Config.OpenTelemetryEnabled {
		n.Use(NewOtelMiddleware())
	}

	n.Use(negroni.NewRecovery())
	n.UseHandler(handler)

	if Config.AutoTunnelNgrok != "" {
		logrus.Infof("AUTO_TUNNEL_NGROK is set (%s): the tunnel is expected to be managed by the process supervisor", Config.AutoTunnelNgrok)
	}

	return n
}
