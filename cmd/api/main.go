package main

import (
	"net/http"
	"os"
	"time"

	"healsync/internal/adapters/auth/sessions"
	"healsync/internal/platform/logger"
	"healsync/internal/ports/auth"
	"healsync/internal/router"
)

//	@title			HealSync Access API
//	@version		1.0
//	@description	Accesos controlados por el paciente a su historia clínica

func main() {
	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	// Sin SESSION_JWT_SECRET se arranca en modo dev (X-Debug headers).
	var verifier auth.Verifier
	if secret := os.Getenv("SESSION_JWT_SECRET"); secret != "" {
		v, err := sessions.NewVerifier(sessions.Config{
			Secret: secret,
			Issuer: os.Getenv("SESSION_JWT_ISSUER"),
		})
		if err != nil {
			log.Error("invalid session verifier config", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		verifier = v
	} else {
		log.Warn("SESSION_JWT_SECRET not set, running in dev auth mode", nil)
	}

	r := router.NewRouter(router.Options{
		AuthVerifier:  verifier,
		Logger:        log,
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
