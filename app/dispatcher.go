package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/carlmjohnson/requests"
	"github.com/google/uuid"
	"github.com/vbrief/pushgate/config"
	"github.com/vbrief/pushgate/lib/vapid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Dispatcher delivers one payload to every stored subscription over the
// Web Push protocol. Delivery is best-effort: each subscriber gets exactly
// one attempt per call, failures never abort the batch, and subscriptions
// the push service reports gone (404/410) are pruned from the store.
type Dispatcher struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *SubscriptionStore
	signer    *vapid.Signer
	transport http.RoundTripper
}

func NewDispatcher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, store *SubscriptionStore, signer *vapid.Signer, transport http.RoundTripper) *Dispatcher {
	return &Dispatcher{cfg, log, store, signer, transport}
}

// NewSigner imports the VAPID key pair from config. Malformed key material
// fails here, at startup, rather than on the first broadcast.
func NewSigner(lc fx.Lifecycle, cfg *config.Config) (*vapid.Signer, error) {
	return vapid.NewSigner(cfg.VapidPublicKey, cfg.VapidPrivateKey, cfg.VapidContact)
}

// DispatchAll fans the payload out to all current subscribers and blocks
// until every attempt settles. The returned count is subscriptions
// attempted, not confirmed deliveries; only a store listing failure fails
// the call itself.
func (d *Dispatcher) DispatchAll(ctx context.Context, payload []byte) (int, error) {
	subs, err := d.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	batchID := uuid.NewString()

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.cfg.DispatchConcurrency)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub Subscription) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pushCtx, cancel := context.WithTimeout(ctx, d.cfg.DispatchTimeout)
			defer cancel()
			d.pushOne(pushCtx, batchID, sub, payload)
		}(sub)
	}
	wg.Wait()

	d.log.Sugar().Infow("Broadcast settled", "batch_id", batchID, "attempted", len(subs))
	return len(subs), nil
}

func (d *Dispatcher) pushOne(ctx context.Context, batchID string, sub Subscription, payload []byte) {
	audience, err := pushOrigin(sub.Endpoint)
	if err != nil {
		d.log.Sugar().Warnw("Skipping subscription with unparseable endpoint",
			"batch_id", batchID, "key", sub.Key, "err", err)
		return
	}

	token, err := d.signer.Sign(audience)
	if err != nil {
		d.log.Sugar().Errorw("Failed to sign push token",
			"batch_id", batchID, "audience", audience, "err", err)
		return
	}

	err = requests.URL(sub.Endpoint).
		Transport(d.transport).
		Method(http.MethodPost).
		Header("TTL", "60").
		Header("Authorization", "WebPush "+token).
		Header("Content-Encoding", "aesgcm").
		Header("Crypto-Key", "p256ecdsa="+d.signer.PublicKey()).
		BodyBytes(payload).
		Fetch(ctx)

	switch {
	case err == nil:
		d.log.Sugar().Debugw("Delivered", "batch_id", batchID, "endpoint", sub.Endpoint)

	case requests.HasStatusErr(err, http.StatusNotFound, http.StatusGone):
		// Expected churn: the browser dropped the registration. Prune it
		// so the next broadcast does not attempt it again.
		if delErr := d.store.Delete(ctx, sub.Key); delErr != nil {
			d.log.Sugar().Errorw("Failed to prune dead subscription",
				"batch_id", batchID, "key", sub.Key, "err", delErr)
			return
		}
		d.log.Sugar().Infow("Pruned dead subscription", "batch_id", batchID, "key", sub.Key)

	case errors.Is(err, requests.ErrTransport):
		d.log.Sugar().Warnw("Push transport error, subscription retained",
			"batch_id", batchID, "endpoint", sub.Endpoint, "err", err)

	default:
		d.log.Sugar().Warnw("Push rejected, subscription retained",
			"batch_id", batchID, "endpoint", sub.Endpoint, "err", err)
	}
}

// pushOrigin reduces a subscription endpoint to its scheme+host. VAPID
// binds the token to the push-service origin, never the full endpoint URL.
func pushOrigin(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no origin", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}
