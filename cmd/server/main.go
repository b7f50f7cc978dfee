package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthive/worldsim/internal/api"
	"github.com/anthive/worldsim/internal/auth"
	"github.com/anthive/worldsim/internal/config"
	"github.com/anthive/worldsim/internal/entity"
	"github.com/anthive/worldsim/internal/eventbus"
	"github.com/anthive/worldsim/internal/logging"
	"github.com/anthive/worldsim/internal/network"
	"github.com/anthive/worldsim/internal/observability"
	"github.com/anthive/worldsim/internal/sim"
	"github.com/anthive/worldsim/internal/storage"
	"github.com/anthive/worldsim/internal/world"
)

// version подставляется при сборке через -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации (по умолчанию $WORLDSIM_CONFIG)")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.Init("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.Close()

	logging.Info("🐜 Запуск WorldSim Server %s...", version)

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		// Все геттеры конфигурации возвращают значения по умолчанию.
		cfg = &config.Config{}
		logging.Info("📡 Файл конфигурации не задан — используются значения по умолчанию")
	}
	if cfg.Logging.ConsoleLevel != "" {
		logging.SetConsoleLevel(logging.ParseLevel(cfg.Logging.ConsoleLevel))
	}

	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	feedAddr := fmt.Sprintf(":%d", cfg.Server.GetFeedPort())
	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())

	logging.Info("📡 Конфигурация: REST=%s, фид=%s, метрики=%s, мир %dx%d, тик %v",
		restAddr, feedAddr, metricsAddr,
		cfg.World.GetWidth(), cfg.World.GetHeight(), cfg.World.GetTickInterval())

	ctx := context.Background()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Observability.Enabled {
		shutdownTelemetry, err := observability.InitTelemetry(ctx, "worldsim", cfg.Observability.OTLPEndpoint)
		if err != nil {
			logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		} else {
			defer func() {
				shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTelemetry(shCtx); err != nil {
					logging.Error("Ошибка остановки телеметрии: %v", err)
				}
			}()
			logging.Info("🔭 OpenTelemetry активирован (%s)", cfg.Observability.OTLPEndpoint)
		}
	}

	// === ПОЛЬЗОВАТЕЛИ И JWT ===
	if cfg.Auth.JWTSecret != "" {
		if err := auth.SetJWTSecret(cfg.Auth.JWTSecret); err != nil {
			logging.Fatal("❌ Некорректный JWT-секрет: %v", err)
		}
	}

	users, err := buildUserRepo(&cfg.Auth)
	if err != nil {
		logging.Fatal("❌ Ошибка инициализации репозитория пользователей: %v", err)
	}

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	var jsBus *eventbus.JetStreamBus
	if cfg.EventBus.URL != "" {
		retention := time.Duration(cfg.EventBus.Retention) * time.Hour
		jsBus, err = eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, retention)
		if err != nil {
			logging.Fatal("❌ Ошибка подключения к NATS JetStream: %v", err)
		}
		bus = jsBus
		logging.Info("✅ Шина событий: NATS JetStream %s", cfg.EventBus.URL)
	} else {
		bus = eventbus.NewMemoryBus(cfg.EventBus.GetBuffer())
		logging.Info("✅ Шина событий: in-memory, буфер %d", cfg.EventBus.GetBuffer())
	}
	eventbus.Init(bus)

	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Error("Ошибка запуска лог-слушателя шины: %v", err)
	}

	exporter := eventbus.NewMetricsExporter(bus)
	exporter.StartHTTP(metricsAddr)

	// === ХРАНИЛИЩА ===
	snapshots, storeName, err := buildSnapshotStore(&cfg.Storage)
	if err != nil {
		logging.Fatal("❌ Ошибка инициализации хранилища снапшотов: %v", err)
	}
	logging.Info("✅ Хранилище снапшотов: %s", storeName)

	catalog, err := storage.OpenCatalog(cfg.Storage.GetCatalogPath())
	if err != nil {
		logging.Fatal("❌ Ошибка открытия каталога снапшотов: %v", err)
	}

	positions, err := buildPositionRepo(&cfg.Storage)
	if err != nil {
		logging.Fatal("❌ Ошибка инициализации репозитория позиций: %v", err)
	}

	// === МИР И СИМУЛЯЦИЯ ===
	w, err := world.NewWorld(cfg.World.GetWidth(), cfg.World.GetHeight())
	if err != nil {
		logging.Fatal("❌ Ошибка создания мира: %v", err)
	}
	manager := entity.NewManager()

	runner := sim.NewRunner(w, manager, sim.Options{
		TickInterval:     cfg.World.GetTickInterval(),
		AutosaveInterval: cfg.World.GetAutosaveInterval(),
		Snapshots:        snapshots,
		Catalog:          catalog,
		Positions:        positions,
		StoreName:        storeName,
	})

	restored, err := runner.RestoreLatest(ctx)
	if err != nil {
		logging.Error("❌ Не удалось восстановить мир из снапшота: %v", err)
	} else if restored {
		logging.Info("💾 Мир восстановлен из последнего снапшота (тик %d)", runner.Tick())
	} else {
		logging.Info("🌍 Снапшотов нет — мир создан с нуля")
	}

	// === СЕТЕВЫЕ СЕРВИСЫ ===
	feed, err := network.NewFeedServer(feedAddr, users, bus)
	if err != nil {
		logging.Fatal("❌ Ошибка создания KCP-фида: %v", err)
	}
	if err := feed.Start(); err != nil {
		logging.Fatal("❌ Ошибка запуска KCP-фида: %v", err)
	}

	rest := api.NewRestServer(api.Config{
		Port:     restAddr,
		UserRepo: users,
		Runner:   runner,
		Bus:      bus,
		Version:  version,
	})
	if secret := os.Getenv("WORLDSIM_WEBHOOK_SECRET"); secret != "" {
		rest.SetWebhookSecret(secret)
	}
	if err := rest.Start(); err != nil {
		logging.Fatal("❌ Ошибка запуска REST API: %v", err)
	}

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   📨 KCP-фид: udp://localhost%s", feedAddr)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", metricsAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)

	logging.Info("💡 Примеры:")
	logging.Info("   curl http://localhost%s/api/world/info", restAddr)
	logging.Info("   curl -X POST http://localhost%s/api/auth/login -H 'Content-Type: application/json' -d '{\"username\":\"admin\",\"password\":\"admin\"}'", restAddr)

	// === ЦИКЛ СИМУЛЯЦИИ ===
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run блокируется до сигнала ОС и перед возвратом делает финальный снапшот.
	if err := runner.Run(runCtx); err != nil {
		logging.Error("❌ Цикл симуляции завершился с ошибкой: %v", err)
	}

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Получен сигнал завершения, остановка сервисов...")

	if err := rest.Stop(); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := feed.Stop(); err != nil {
		logging.Error("❌ Ошибка остановки KCP-фида: %v", err)
	}
	exporter.Stop()
	if jsBus != nil {
		jsBus.Close()
	}
	if closer, ok := positions.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logging.Error("Ошибка закрытия репозитория позиций: %v", err)
		}
	}
	if err := snapshots.Close(); err != nil {
		logging.Error("Ошибка закрытия хранилища снапшотов: %v", err)
	}
	if err := catalog.Close(); err != nil {
		logging.Error("Ошибка закрытия каталога: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// buildUserRepo выбирает реализацию репозитория пользователей по конфигурации.
func buildUserRepo(cfg *config.AuthConfig) (auth.UserRepository, error) {
	switch cfg.Repo {
	case "maria":
		repo, err := auth.NewMariaUserRepo(cfg.MariaDSN)
		if err != nil {
			return nil, fmt.Errorf("maria: %w", err)
		}
		logging.Info("✅ Репозиторий пользователей: MariaDB")
		return repo, nil
	case "mongo":
		repo, err := auth.NewMongoUserRepo(auth.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   "worldsim",
			Collection: "users",
			Counters:   "counters",
		})
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		logging.Info("✅ Репозиторий пользователей: MongoDB")
		return repo, nil
	case "", "memory":
		repo, err := auth.NewMemoryUserRepo()
		if err != nil {
			return nil, fmt.Errorf("memory: %w", err)
		}
		logging.Warn("⚠️  Репозиторий пользователей in-memory: учётные записи не переживут перезапуск")
		return repo, nil
	default:
		return nil, fmt.Errorf("неизвестный репозиторий пользователей: %q", cfg.Repo)
	}
}

// buildSnapshotStore выбирает бэкенд полных снапшотов мира.
func buildSnapshotStore(cfg *config.StorageConfig) (storage.SnapshotStore, string, error) {
	switch cfg.SnapshotStore {
	case "file":
		store, err := storage.NewFileSnapshotStore(cfg.GetSnapshotDir())
		if err != nil {
			return nil, "", err
		}
		return store, "file", nil
	case "", "badger":
		store, err := storage.NewWorldStorage(cfg.GetPath())
		if err != nil {
			return nil, "", err
		}
		return store, "badger", nil
	default:
		return nil, "", fmt.Errorf("неизвестное хранилище снапшотов: %q", cfg.SnapshotStore)
	}
}

// buildPositionRepo выбирает горячее хранилище позиций сущностей.
func buildPositionRepo(cfg *config.StorageConfig) (storage.PositionRepo, error) {
	switch cfg.PositionRepo {
	case "redis":
		rc := storage.DefaultRedisConfig()
		if cfg.RedisAddr != "" {
			rc.Addr = cfg.RedisAddr
		}
		repo, err := storage.NewRedisPositionRepo(rc)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		logging.Info("✅ Репозиторий позиций: Redis %s", rc.Addr)
		return repo, nil
	case "maria":
		repo, err := storage.NewMariaPositionRepo(cfg.MariaDSN)
		if err != nil {
			return nil, fmt.Errorf("maria: %w", err)
		}
		logging.Info("✅ Репозиторий позиций: MariaDB")
		return repo, nil
	case "", "memory":
		return storage.NewMemoryPositionRepo(), nil
	default:
		return nil, fmt.Errorf("неизвестный репозиторий позиций: %q", cfg.PositionRepo)
	}
}
