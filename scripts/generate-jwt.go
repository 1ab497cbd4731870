//go:build ignore

// Prints a bearer token for the recipe-gantt API.
// Usage: API_JWT_SECRET=secret go run scripts/generate-jwt.go [client-id]
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	secret := os.Getenv("API_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: API_JWT_SECRET environment variable must be set")
		fmt.Fprintln(os.Stderr, "Usage: API_JWT_SECRET=secret go run scripts/generate-jwt.go [client-id]")
		os.Exit(1)
	}
	issuer := os.Getenv("API_JWT_ISSUER")
	if issuer == "" {
		issuer = "recipe-gantt"
	}
	subject := "local-client"
	if len(os.Args) > 1 {
		subject = os.Args[1]
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(tokenString)
}
