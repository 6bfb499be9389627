package main

import (
	"log"
	"os"
	"time"

	"tradehook/internal/api"
)

// Mints a management bearer token for the protected API routes.
//
// Usage:
//   JWT_SECRET=... go run ./scripts/token_gen [subject]

func main() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	subject := "operator"
	if len(os.Args) > 1 {
		subject = os.Args[1]
	}

	token, err := api.GenerateToken(subject, secret, time.Now().Add(72*time.Hour))
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	os.Stdout.WriteString(token + "\n")
}
