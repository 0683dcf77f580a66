package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/rota-engine/internal/config"
	"github.com/arnavshah/rota-engine/pkg/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <organizationID>")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.APIMasterSecret == "" {
		fmt.Println("Error: API_MASTER_SECRET is not set")
		os.Exit(1)
	}

	organizationID := os.Args[1]
	key := auth.New(cfg.JWTSecret, cfg.APIMasterSecret, cfg.JWTExpiry).GenerateKey(organizationID)
	fmt.Printf("Generated Key for %s:\n%s\n", organizationID, key)
}
