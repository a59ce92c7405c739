package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/auth/apikey"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/auth/jwt"
)

func main() {
	_ = godotenv.Load()

	userID := flag.String("user", "", "user id to put in the token subject")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	issuer := flag.String("issuer", os.Getenv("POLY_AUTH__ISSUER"), "issuer claim (must match auth.issuer)")
	hash := flag.String("hash", "", "print the SHA-256 hash of this API key instead of issuing a token")
	flag.Parse()

	if *hash != "" {
		keyHash := apikey.HashAPIKey(*hash)
		fmt.Printf("SHA-256 Hash: %s\n", keyHash)
		fmt.Println("\nAdd this to your config.yaml:")
		fmt.Printf("  api_keys:\n")
		fmt.Printf("    - key_hash: \"%s\"\n", keyHash)
		fmt.Printf("      user_id: \"%s\"\n", *userID)
		fmt.Printf("      description: \"Generated key\"\n")
		return
	}

	secret := os.Getenv("POLY_AUTH__JWT_SECRET")
	if *userID == "" || secret == "" {
		fmt.Println("Usage: POLY_AUTH__JWT_SECRET=... tokengen -user <id> [-email addr] [-ttl 24h]")
		fmt.Println("       tokengen -hash <api-key> [-user <id>]")
		os.Exit(1)
	}

	p, err := jwt.NewProvider(secret, *issuer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create signer: %v\n", err)
		os.Exit(1)
	}
	token, err := p.Issue(*userID, *email, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
