package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/enforce"
	"github.com/sirupsen/logrus"
)

/*
 * Server is the webhook receiver. POST / takes the GitHub webhook
 * envelope; pull_request deliveries on the permissions repo go to the
 * dry-run harness, everything else goes to the enforcement engine.
 * GET /static/ serves the images referenced from alert blocks.
 */
type Server struct {
	engine  *enforce.Engine
	harness *DryRunHarness
	server  *http.Server
}

func NewServer(engine *enforce.Engine, harness *DryRunHarness) *Server {
	return &Server{
		engine:  engine,
		harness: harness,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.WebhookHandler)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Config.Port),
		Handler: config.SetupGlobalMiddleware(mux),
	}

	logrus.Infof("listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and lets in-flight dry-runs
// complete.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.TODO(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.harness.Drain()
	return nil
}

func (s *Server) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	if config.Config.WebhookSecret != "" {
		mac := hmac.New(sha256.New, []byte(config.Config.WebhookSecret))
		mac.Write(body)
		expectedSignature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	eventType := r.Header.Get("X-GitHub-Event")
	deliveryId := r.Header.Get("X-GitHub-Delivery")

	switch eventType {
	case "ping":
		w.WriteHeader(http.StatusOK)
	case "pull_request":
		// processing continues after this handler returns
		s.harness.HandlePullRequest(context.Background(), body)
		w.WriteHeader(http.StatusOK)
	default:
		// unknown events are accepted and logged, never rejected
		if err := s.engine.HandleEvent(r.Context(), eventType, deliveryId, body); err != nil {
			logrus.Errorf("cannot process %s delivery %s: %v", eventType, deliveryId, err)
		}
		w.WriteHeader(http.StatusOK)
	}
}
