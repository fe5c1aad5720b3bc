package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят и инварианты выполняются.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderExists
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Patch применяет частичный merge к заказу. Смена статуса проходит через
// таблицу переходов; повтор текущего статуса — no-op, не ошибка.
func (r *orderRepositoryInMemory) Patch(ctx context.Context, id string, patch domain.OrderPatch) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	if patch.Status != nil && !order.Status.CanTransitionTo(*patch.Status) {
		return domain.Order{}, domain.ErrInvalidTransition
	}

	if patch.Status != nil {
		order.Status = *patch.Status
	}
	if patch.PaymentID != nil {
		order.PaymentID = *patch.PaymentID
	}
	if patch.PaymentAmountMinor != nil {
		order.PaymentAmountMinor = *patch.PaymentAmountMinor
	}
	if patch.SlipReference != nil {
		order.SlipReference = *patch.SlipReference
	}
	if patch.SlipNumber != nil {
		order.SlipNumber = *patch.SlipNumber
	}

	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = cloneOrder(order)
	return cloneOrder(order), nil
}

func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Items = append([]domain.OrderItem(nil), order.Items...)
	return out
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
