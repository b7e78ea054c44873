// Command userplan assigns a billing plan to a user. An operator tool for
// support work: upgrades, comped pro time, and manual downgrades.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"swiftapply/internal/domain"
	"swiftapply/internal/infra"
	"swiftapply/internal/sqlinline"
)

func main() {
	var (
		idFlag      string
		planFlag    string
		expiresFlag string
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update")
	flag.StringVar(&planFlag, "plan", "pro", "plan to assign (free, pro)")
	flag.StringVar(&expiresFlag, "expires", "", "plan expiry as RFC 3339 timestamp (empty = no expiry)")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	plan := domain.Plan(strings.TrimSpace(strings.ToLower(planFlag)))

	if userID == "" {
		exitWithError(errors.New("-id is required"))
	}
	switch plan {
	case domain.PlanFree, domain.PlanPro:
	default:
		exitWithError(fmt.Errorf("unsupported plan %q", plan))
	}

	var expiresAt *time.Time
	if trimmed := strings.TrimSpace(expiresFlag); trimmed != "" {
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			exitWithError(fmt.Errorf("invalid -expires value: %w", err))
		}
		expiresAt = &parsed
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "userplan").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	row := runner.QueryRow(ctx, sqlinline.QSetUserPlan, userID, string(plan), expiresAt)

	var (
		updatedID      string
		updatedPlan    string
		updatedExpires *time.Time
	)
	if err := row.Scan(&updatedID, &updatedPlan, &updatedExpires); err != nil {
		exitWithError(fmt.Errorf("failed to update user plan: %w", err))
	}

	if updatedExpires != nil {
		fmt.Printf("User %s updated to plan %s (expires %s)\n", updatedID, updatedPlan, updatedExpires.UTC().Format(time.RFC3339))
	} else {
		fmt.Printf("User %s updated to plan %s (no expiry)\n", updatedID, updatedPlan)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
