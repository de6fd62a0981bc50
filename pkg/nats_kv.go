package pkg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSKeyValue exposes a JetStream key-value bucket as the shared state
// medium for session stores. Every store replica serving the same table
// reads and writes the same key; the bucket's watch feed delivers change
// notifications to the other replicas.
type NATSKeyValue struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NATSKeyValueConfig configures a NATSKeyValue instance.
type NATSKeyValueConfig struct {
	URL    string        // NATS server URL
	Bucket string        // KV bucket name (e.g. "SESSION_STATE")
	TTL    time.Duration // Bucket-level entry TTL (0 = keep forever)
}

// NewNATSKeyValue connects to NATS and ensures the bucket exists.
func NewNATSKeyValue(cfg NATSKeyValueConfig) (*NATSKeyValue, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(context.Background(), jetstream.KeyValueConfig{
		Bucket: cfg.Bucket,
		TTL:    cfg.TTL,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update bucket %s: %w", cfg.Bucket, err)
	}

	return &NATSKeyValue{conn: conn, kv: kv}, nil
}

// Read returns the stored value for key, or "" when the key is absent.
func (s *NATSKeyValue) Read(ctx context.Context, key string) (string, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return string(entry.Value()), nil
}

// Write stores value under key.
func (s *NATSKeyValue) Write(ctx context.Context, key string, value string) error {
	if _, err := s.kv.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Delete removes key from the bucket.
func (s *NATSKeyValue) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Keys lists the keys currently present in the bucket.
func (s *NATSKeyValue) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// Watch delivers every subsequent put to key through handler until ctx is
// cancelled. The initial replay of existing values is skipped; watchers only
// care about changes made after they attached.
func (s *NATSKeyValue) Watch(ctx context.Context, key string, handler events.HandlerFunc) error {
	watcher, err := s.kv.Watch(ctx, key, jetstream.UpdatesOnly())
	if err != nil {
		return fmt.Errorf("failed to watch key %s: %w", key, err)
	}

	go func() {
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}
				// Handler errors are the handler's concern; the watch
				// feed must keep flowing regardless.
				_ = handler(ctx, entry.Value())
			}
		}
	}()

	return nil
}

// Close closes the NATS connection.
func (s *NATSKeyValue) Close() error {
	s.conn.Close()
	return nil
}
