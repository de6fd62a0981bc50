package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"

	"github.com/sharedtab/sharedtab/pkg"
	"github.com/sharedtab/sharedtab/services/session/internal/mongo"
	"github.com/sharedtab/sharedtab/services/session/internal/session"
)

const (
	appNamespace = "SESSION"
	appName      = "session"
	appVersion   = "0.1.0"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	baseRepo := mongo.NewBaseRepo(config, logger)
	err = baseRepo.Start(ctx)
	if err != nil {
		log.Fatalf("%s(%s) cannot start base repository: %v", appName, appVersion, err)
	}

	db := baseRepo.GetDatabase()
	if db == nil {
		log.Fatalf("%s(%s) cannot initialize repository database: %v", appName, appVersion, errors.New("repository database is nil"))
	}

	receiptRepo := mongo.NewReceiptRepo(db)

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	pub, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}

	sub, err := pkg.NewNATSSubscriber(natsURL, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
	}

	stateKV, err := pkg.NewNATSKeyValue(pkg.NATSKeyValueConfig{
		URL:    natsURL,
		Bucket: config.GetStringOrDef("kv.bucket", "SESSION_STATE"),
	})
	if err != nil {
		log.Fatalf("%s(%s) cannot open session state bucket: %v", appName, appVersion, err)
	}

	kitchenURL := config.GetStringOrDef("services.kitchen.url", "")
	if kitchenURL == "" {
		log.Fatalf("%s(%s) cannot create kitchen service client: missing services.kitchen.url", appName, appVersion)
	}
	kitchenClient := apt.NewServiceClient(kitchenURL)

	submitter := session.NewKitchenSubmitter(kitchenClient, pub, logger)
	closer := session.NewArchiveTableCloser(receiptRepo, pub, logger)

	store := session.NewStore(session.StoreDeps{
		StateStore: stateKV,
		Submitter:  submitter,
		Closer:     closer,
		Publisher:  pub,
	}, session.StoreOptions{
		StateKey:     config.GetStringOrDef("session.state_key", session.DefaultStateKey),
		ExpiryWindow: durationHours(config, "session.expiry_hours", session.DefaultExpiryWindow),
		StaleAfter:   durationHours(config, "session.stale_hours", session.DefaultStaleAfter),
	}, logger)

	if err := store.Rehydrate(ctx); err != nil {
		logger.Info("cannot rehydrate session state, starting empty", "error", err)
	}

	syncSub := session.NewRemoteStateSubscriber(stateKV, store, logger)
	kitchenStatusSub := session.NewKitchenStatusSubscriber(sub, store, logger)

	publisherLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	}

	subLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return sub.Close()
		},
	}

	kvLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return stateKV.Close()
		},
	}

	hd := session.HandlerDeps{
		Store:    store,
		Receipts: receiptRepo,
	}

	handler := session.NewHandler(hd, config, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: logger,
	})

	lifecycles := []interface{}{
		apt.LifecycleHooks{OnStop: baseRepo.Stop},
		syncSub,
		kitchenStatusSub,
		publisherLifecycle,
		subLifecycle,
		kvLifecycle,
	}

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	err = ms.Run(ctx)
	if err != nil {
		_ = baseRepo.Stop(context.Background())
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

// durationHours reads an integer hour count from config, falling back when
// absent or malformed.
func durationHours(config *apt.Config, key string, def time.Duration) time.Duration {
	raw := config.GetStringOrDef(key, "")
	if raw == "" {
		return def
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return def
	}
	return time.Duration(hours) * time.Hour
}
