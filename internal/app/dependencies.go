package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// Dependencies содержит хранилища, из которых собирается конвейер расчёта.
type Dependencies struct {
	Inventory     domain.InventoryStore
	Orders        domain.OrderRepository
	Reservations  domain.ReservationLedger
	Notifications domain.NotificationLedger
	Logger        *log.Entry

	// store не nil только для postgres; нужен для ping-проверки и закрытия.
	store *postgres.Store
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() {
	if d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		d.Logger.WithError(err).Warn("failed to close postgres store")
	}
}

// PingStorage проверяет доступность backend-хранилища. Для memory всегда nil.
func (d *Dependencies) PingStorage(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	return d.store.Ping(ctx)
}

// initStorage собирает зависимости для выбранного драйвера хранилища.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		inventory := memory.NewInventoryStore()
		if cfg.SeedDemoInventory {
			seedDemoInventory(inventory)
			logger.Info("demo inventory seeded")
		}
		return &Dependencies{
			Inventory:     inventory,
			Orders:        memory.NewOrderRepository(),
			Reservations:  memory.NewReservationLedger(),
			Notifications: memory.NewNotificationLedger(),
			Logger:        logger,
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		inventory := postgres.NewInventoryStore(store)
		if cfg.SeedDemoInventory {
			for _, product := range demoProducts() {
				if err := inventory.Seed(ctx, product); err != nil {
					_ = store.Close()
					return nil, fmt.Errorf("seed product %s: %w", product.ID, err)
				}
			}
			logger.Info("demo inventory seeded")
		}
		return &Dependencies{
			Inventory:     inventory,
			Orders:        postgres.NewOrderRepository(store),
			Reservations:  postgres.NewReservationLedger(store),
			Notifications: postgres.NewNotificationLedger(store),
			Logger:        logger,
			store:         store,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// seedDemoInventory наполняет memory-склад небольшим каталогом, чтобы чекаут
// работал из коробки в локальной разработке.
func seedDemoInventory(store *memory.InventoryStore) {
	for _, product := range demoProducts() {
		store.Seed(product)
	}
}

func demoProducts() []domain.Product {
	now := time.Now()

	return []domain.Product{
		{
			ID:           "tee-classic",
			Title:        "Classic Tee",
			PriceMinor:   450000,
			DiscountPct:  10,
			AvailableQty: 24,
			Colors: []domain.ColorVariant{
				{
					Key: "black", Name: "Black", Color: "#000000", Qty: 14,
					Sizes: []domain.SizeVariant{
						{Label: "S", Qty: 4},
						{Label: "M", Qty: 6},
						{Label: "L", Qty: 4},
					},
				},
				{
					Key: "white", Name: "White", Color: "#ffffff", Qty: 10,
					Sizes: []domain.SizeVariant{
						{Label: "M", Qty: 5},
						{Label: "L", Qty: 5},
					},
				},
			},
			UpdatedAt: now,
		},
		{
			ID:           "mug-enamel",
			Title:        "Enamel Mug",
			PriceMinor:   180000,
			AvailableQty: 30,
			Colors: []domain.ColorVariant{
				{Key: "navy", Name: "Navy", Color: "#001f3f", Qty: 18},
				{Key: "olive", Name: "Olive", Color: "#3d9970", Qty: 12},
			},
			UpdatedAt: now,
		},
	}
}
