// Command admintoken prints a signed admin token for the /api/v1/admin routes.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/temcen/shopsense/internal/app"
	"github.com/temcen/shopsense/internal/config"
	"github.com/temcen/shopsense/internal/services"
	"github.com/temcen/shopsense/pkg/models"
)

func main() {
	subject := flag.String("subject", "operator", "token subject")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	auth := services.NewAuthService(&cfg.Auth, app.SetupLogger(cfg))
	token, err := auth.GenerateToken(*subject, models.RoleAdmin)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
}
