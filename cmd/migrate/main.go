// cmd/migrate/main.go applies the embedded schema migrations.
//
//	migrate up | down | status | redo | version | up-to <version> | down-to <version>
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/campus/internal/config"
	"github.com/jason-s-yu/campus/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|down|status|redo|version|up-to|down-to> [args]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	if err := database.Migrate(ctx, os.Args[1], os.Args[2:]...); err != nil {
		logrus.Errorf("%v", err)
		database.CloseDB()
		os.Exit(1)
	}
}
