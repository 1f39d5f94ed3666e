package app

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/vbrief/pushgate/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Sugar().Panic("failed to connect database", "err", err)
	}
	log.Info("Database started")

	log.Info("Starting migrations")
	db.AutoMigrate(
		&Subscription{},
	)
	return db
}

// Subscription is one browser's push registration. The storage key is
// derived from the endpoint, so re-subscribing the same browser overwrites
// the existing record rather than duplicating it.
type Subscription struct {
	Key       string `gorm:"primaryKey"`
	Endpoint  string
	Payload   string // subscription JSON as received, passed through to the push service
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Subscriptions []Subscription

// StorageKey is base64(endpoint) with padding stripped. Two subscriptions
// for the same endpoint collide to one record on purpose.
func StorageKey(endpoint string) string {
	return strings.TrimRight(base64.StdEncoding.EncodeToString([]byte(endpoint)), "=")
}
