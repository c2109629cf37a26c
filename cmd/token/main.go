// Command token mints a signed member token for local testing.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joao-fontenele/giftorder/internal/auth"
	"github.com/joao-fontenele/giftorder/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	email := flag.String("email", "", "member email to put in the token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *email == "" {
		logger.Error("usage: token -email member@example.com [-ttl 1h]")
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, *ttl)
	if err != nil {
		logger.Error("failed to create signer", "error", err)
		os.Exit(1)
	}

	token, err := verifier.Sign(*email)
	if err != nil {
		logger.Error("failed to sign token", "error", err)
		os.Exit(1)
	}

	fmt.Println("Bearer " + token)
}
