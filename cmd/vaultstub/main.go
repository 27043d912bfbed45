// Command vaultstub serves a fake Vault API for running the feature suite
// without a real Vault.
//
//	PORT=8200 VAULT_STUB_TOKEN=hvs.dev vaultstub
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BigKAA/infraprobe/internal/vaultstub"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8200"
	}
	token := os.Getenv("VAULT_STUB_TOKEN")
	if token == "" {
		token = "root"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	stub := vaultstub.New(token, logger)
	stub.Mount("database/", "database")

	addr := ":" + port
	logger.Info("starting vaultstub", "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
