package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/api/middleware"
)

func main() {
	secret := flag.String("secret", "", "JWT signing secret (or JWT_SECRET env)")
	userID := flag.String("user", "", "User UUID (random if omitted)")
	name := flag.String("name", "dev", "Display name")
	role := flag.String("role", "member", "Role claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" {
		*secret = os.Getenv("JWT_SECRET")
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Usage: minttoken -secret <jwt-secret> [-user <uuid>] [-name <name>] [-role <role>] [-ttl <duration>]")
		os.Exit(1)
	}

	id := *userID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid user UUID: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	claims := middleware.TokenClaims{
		Name: *name,
		Role: *role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user: %s\n", id)
	fmt.Printf("token: %s\n", token)
}
