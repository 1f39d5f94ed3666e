package app

import (
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vbrief/pushgate/config"
	"github.com/vbrief/pushgate/lib/vapid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Subscription{}))
	return db
}

func newTestStore(t *testing.T) *SubscriptionStore {
	t.Helper()
	return NewSubscriptionStore(nil, zap.NewNop(), newTestDB(t))
}

func testVapidKeys(t *testing.T) (public, private string) {
	t.Helper()

	d, x, y, err := elliptic.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	return enc.EncodeToString(elliptic.Marshal(elliptic.P256(), x, y)), enc.EncodeToString(d)
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	pub, priv := testVapidKeys(t)
	return &config.Config{
		VapidPublicKey:      pub,
		VapidPrivateKey:     priv,
		VapidContact:        "admin@example.com",
		BroadcastKey:        "test-broadcast-key",
		AllowedOrigin:       "https://app.example",
		DispatchConcurrency: 4,
		DispatchTimeout:     5 * time.Second,
	}
}

func newTestDispatcher(t *testing.T, cfg *config.Config, store *SubscriptionStore) *Dispatcher {
	t.Helper()

	signer, err := vapid.NewSigner(cfg.VapidPublicKey, cfg.VapidPrivateKey, cfg.VapidContact)
	require.NoError(t, err)
	return NewDispatcher(nil, cfg, zap.NewNop(), store, signer, http.DefaultTransport)
}
