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
	"github.com/joho/godotenv"

	"photoenhance/internal/adapter/repo"
	"photoenhance/internal/domain"
	"photoenhance/internal/infra"
	"photoenhance/internal/sqlinline"
)

func main() {
	_ = godotenv.Load()

	var (
		idFlag      string
		emailFlag   string
		grantFlag   int
		promoteFlag bool
	)
	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.IntVar(&grantFlag, "grant", 0, "number of credits to add")
	flag.BoolVar(&promoteFlag, "admin", false, "promote the user to ADMIN (unlimited credits)")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	if grantFlag <= 0 && !promoteFlag {
		exitWithError(errors.New("nothing to do: pass -grant N or -admin"))
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

	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Logger()
	runner := infra.NewSQLRunner(pool, logger)
	users := repo.NewUserRepository(runner)

	var user *domain.User
	if userID != "" {
		user, err = users.GetByID(ctx, userID)
	} else {
		user, err = users.GetByEmail(ctx, email)
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to load user: %w", err))
	}

	var (
		updatedID    string
		updatedEmail string
		updatedRole  string
		updatedBal   int
	)
	if promoteFlag {
		row := runner.QueryRow(ctx, sqlinline.QPromoteAdmin, user.ID, domain.UnlimitedCredits)
		err = row.Scan(&updatedID, &updatedEmail, &updatedRole, &updatedBal)
	} else {
		if user.IsPrivileged() {
			exitWithError(fmt.Errorf("user %s is ADMIN; credits are not tracked", user.Email))
		}
		row := runner.QueryRow(ctx, sqlinline.QGrantCredits, user.ID, grantFlag)
		err = row.Scan(&updatedID, &updatedEmail, &updatedRole, &updatedBal)
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to update user: %w", err))
	}

	fmt.Printf("User %s (%s) role=%s credits=%d\n", updatedID, updatedEmail, updatedRole, updatedBal)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
