package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/friendsforever/server-go/internal/database"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/repository"
	"github.com/friendsforever/server-go/internal/util"
)

const tokenTTL = 30 * 24 * time.Hour

// Creates a user and prints a bearer token for local testing.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: DATABASE_URL=... go run scripts/issue-token.go <display-name>\n")
		os.Exit(1)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintf(os.Stderr, "Error: DATABASE_URL is not set\n")
		os.Exit(1)
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	user, err := repository.NewUserRepository(db.DB).Create(ctx, model.CreateUserParams{DisplayName: os.Args[1]})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if _, err := repository.NewAuthSessionRepository(db.DB).Create(ctx, user.ID, util.HashToken(token), time.Now().Add(tokenTTL)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user %d: %s\n", user.ID, token)
}
