// Command seed loads the waste catalog and a moderator account into an empty
// database. Running it twice is harmless.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"ecos/internal/config"
	"ecos/internal/database"
	"ecos/internal/domain"
	"ecos/internal/identity"
	jwtsvc "ecos/internal/pkg/jwt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type wasteSeed struct {
	abbr  string
	names map[domain.LanguageCode]string
}

var catalog = []wasteSeed{
	{"PET", map[domain.LanguageCode]string{
		domain.LanguageEN: "PET plastic", domain.LanguageRU: "ПЭТ пластик", domain.LanguageKK: "ПЭТ пластик",
	}},
	{"HDPE", map[domain.LanguageCode]string{
		domain.LanguageEN: "High-density polyethylene", domain.LanguageRU: "Полиэтилен высокой плотности", domain.LanguageKK: "Тығыздығы жоғары полиэтилен",
	}},
	{"PAP", map[domain.LanguageCode]string{
		domain.LanguageEN: "Paper and cardboard", domain.LanguageRU: "Бумага и картон", domain.LanguageKK: "Қағаз және картон",
	}},
	{"GL", map[domain.LanguageCode]string{
		domain.LanguageEN: "Glass", domain.LanguageRU: "Стекло", domain.LanguageKK: "Шыны",
	}},
	{"ALU", map[domain.LanguageCode]string{
		domain.LanguageEN: "Aluminium", domain.LanguageRU: "Алюминий", domain.LanguageKK: "Алюминий",
	}},
	{"BAT", map[domain.LanguageCode]string{
		domain.LanguageEN: "Batteries", domain.LanguageRU: "Батарейки", domain.LanguageKK: "Батареялар",
	}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := database.Connect(cfg.DatabaseURL, nil)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	if err := seedCatalog(db); err != nil {
		log.Fatalf("seed waste catalog: %v", err)
	}

	email := getEnv("SEED_MODERATOR_EMAIL", "moderator@ecos.local")
	password := getEnv("SEED_MODERATOR_PASSWORD", "moderator123")
	ids := identity.NewLocalProvider(db, jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer))
	if err := ids.Migrate(); err != nil {
		log.Fatalf("migrate identities: %v", err)
	}
	if err := seedModerator(context.Background(), db, ids, email, password); err != nil {
		log.Fatalf("seed moderator: %v", err)
	}
	log.Printf("moderator ready: %s", email)
}

func seedCatalog(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, s := range catalog {
			w := domain.Waste{AbbreviatedName: s.abbr}
			if err := tx.Where(domain.Waste{AbbreviatedName: s.abbr}).FirstOrCreate(&w).Error; err != nil {
				return err
			}
			for lang, name := range s.names {
				t := domain.WasteTranslation{WasteID: w.ID, LanguageCode: lang, Name: name}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&t).Error; err != nil {
					return err
				}
			}
			log.Printf("waste %s: %d translations", s.abbr, len(s.names))
		}
		return nil
	})
}

// seedModerator creates the identity once, then makes sure the matching user
// row exists and is verified.
func seedModerator(ctx context.Context, db *gorm.DB, ids *identity.LocalProvider, email, password string) error {
	id, err := ids.CreateUser(ctx, identity.NewIdentity{Email: email, Password: password, Role: identity.RoleModerator})
	switch {
	case errors.Is(err, identity.ErrIdentityExists):
		tok, err := ids.Authenticate(ctx, email, password)
		if err != nil {
			return err
		}
		who, err := ids.VerifyToken(ctx, tok.AccessToken)
		if err != nil {
			return err
		}
		id = who.ID
	case err != nil:
		return err
	}
	if err := ids.SetEmailVerified(ctx, id, true); err != nil {
		return err
	}

	u := domain.User{ID: id, Email: email, EmailVerified: true}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email_verified"}),
	}).Create(&u).Error
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
