package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/sharedtab/sharedtab/pkg"
	"github.com/sharedtab/sharedtab/services/session/internal/session"
)

// PurgeSessions deletes expired session entries from the shared state bucket.
// Active and merely stale sessions are left alone.
func PurgeSessions(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")
	bucket := config.GetStringOrDef("kv.bucket", "SESSION_STATE")

	kv, err := pkg.NewNATSKeyValue(pkg.NATSKeyValueConfig{URL: natsURL, Bucket: bucket})
	if err != nil {
		return fmt.Errorf("open state bucket: %w", err)
	}
	defer kv.Close()

	keys, err := kv.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list state keys: %w", err)
	}

	now := time.Now()
	purged := 0
	for _, key := range keys {
		raw, err := kv.Read(ctx, key)
		if err != nil {
			logger.Info("cannot read state entry", "key", key, "error", err)
			continue
		}

		var ps struct {
			Session *session.TableSession `json:"session"`
		}
		if err := json.Unmarshal([]byte(raw), &ps); err != nil {
			logger.Info("skipping corrupt state entry", "key", key, "error", err)
			continue
		}
		if ps.Session == nil {
			// Vacated entry; nothing left to expire.
			continue
		}

		if !session.SessionExpired(ps.Session.CreatedAt, ps.Session.LastActivity, session.DefaultExpiryWindow, now) {
			continue
		}

		if err := kv.Delete(ctx, key); err != nil {
			logger.Info("cannot delete expired entry", "key", key, "error", err)
			continue
		}

		logger.Info("purged expired session", "key", key, "table_number", ps.Session.TableNumber)
		purged++
	}

	logger.Infof("Purged %d expired session(s) from bucket %s", purged, bucket)
	return nil
}
