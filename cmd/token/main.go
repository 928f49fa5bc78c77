// Package main mints a signed access token with the configured JWT_SECRET, for service-to-service
// calls and smoke tests against a deployment.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/warsha-platform/backend/config"
	"github.com/warsha-platform/backend/internal/auth"
	"github.com/warsha-platform/backend/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	svc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	if err := run(os.Args[1:], svc, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, svc *auth.JWTService, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "User ID (UUID) the token is issued for")
	email := fs.String("email", "", "Email claim")
	role := fs.String("role", middleware.RoleOrganizer, "Role claim: organizer, admin or student")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := uuid.Parse(*user)
	if err != nil || userID == uuid.Nil {
		return fmt.Errorf("-user must be a non-nil UUID")
	}
	switch *role {
	case middleware.RoleOrganizer, middleware.RoleAdmin, middleware.RoleStudent:
	default:
		return fmt.Errorf("unknown role %q", *role)
	}

	token, err := svc.Generate(userID, *email, *role)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
