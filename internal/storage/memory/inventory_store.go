package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// InventoryStore — in-memory реализация domain.InventoryStore с проверкой
// версий: CommitProducts имитирует multi-document транзакцию документной БД.
type InventoryStore struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewInventoryStore возвращает in-memory склад для локальной разработки и тестов.
func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		items: make(map[string]domain.Product),
	}
}

// Seed загружает товар, минуя проверку версий. Только для инициализации.
func (s *InventoryStore) Seed(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[product.ID] = product.Clone()
}

// GetProduct возвращает копию товара или ErrProductNotFound.
func (s *InventoryStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product.Clone(), nil
}

// CommitProducts записывает все документы, если версия каждого совпадает с
// текущей. При любом несовпадении не записывается ничего.
func (s *InventoryStore) CommitProducts(ctx context.Context, products []domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Сначала сверяем все версии, потом пишем: all-or-nothing.
	for _, product := range products {
		current, ok := s.items[product.ID]
		if !ok {
			return domain.ErrProductNotFound
		}
		if current.Version != product.Version {
			return domain.ErrVersionConflict
		}
		if errs := product.ValidateInvariants(); len(errs) > 0 {
			return errs[0]
		}
	}

	now := time.Now().UTC()
	for _, product := range products {
		next := product.Clone()
		next.Version++
		next.UpdatedAt = now
		s.items[next.ID] = next
	}
	return nil
}

var _ domain.InventoryStore = (*InventoryStore)(nil)
