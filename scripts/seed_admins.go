package main

import (
	"context"
	"os"
	"strings"

	"ratemylandlord-server/config"
	"ratemylandlord-server/logger"
	"ratemylandlord-server/storage"

	"github.com/joho/godotenv"
)

// Adds the e-mails given as arguments, or listed in ADMIN_EMAILS, to the
// admin allow-list.
func main() {
	godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), "console")
	log := logger.Component("seed-admins")

	emails := os.Args[1:]
	if len(emails) == 0 {
		for _, e := range strings.Split(os.Getenv("ADMIN_EMAILS"), ",") {
			if e = strings.TrimSpace(e); e != "" {
				emails = append(emails, e)
			}
		}
	}
	if len(emails) == 0 {
		log.Fatal().Msg("usage: seed_admins email [email...] (or set ADMIN_EMAILS)")
	}

	city := os.Getenv("DEFAULT_CITY")
	if city == "" {
		city = config.DefaultCity
	}
	db, err := storage.InitializeDB(os.Getenv("DB_CONNECTION_STRING"), city)
	if err != nil {
		log.Fatal().Err(err).Msg("database initialization failed")
	}
	records := storage.NewRecords(db)

	ctx := context.Background()
	for _, email := range emails {
		if err := records.AddAdmin(ctx, email); err != nil {
			log.Fatal().Err(err).Str("email", email).Msg("could not add admin")
		}
		log.Info().Str("email", email).Msg("admin added")
	}
}
