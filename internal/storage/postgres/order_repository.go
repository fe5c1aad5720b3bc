package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
// Patch использует SELECT ... FOR UPDATE, чтобы сериализовать конкурирующие
// обновления одного заказа (вебхук vs оркестратор).
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return errs[0]
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, status, payment_method,
			subtotal_minor, shipping_minor, total_minor,
			first_name, last_name, email, phone, address, city, country,
			slip_reference, slip_number, payment_id, payment_amount_minor,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
	`,
		order.ID, string(order.Status), string(order.PaymentMethod),
		order.SubtotalMinor, order.ShippingMinor, order.TotalMinor,
		order.Customer.FirstName, order.Customer.LastName, order.Customer.Email,
		order.Customer.Phone, order.Customer.Address, order.Customer.City, order.Customer.Country,
		order.SlipReference, order.SlipNumber, order.PaymentID, order.PaymentAmountMinor,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrOrderExists
			return err
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, position, product_id, title, color_key, size_label, qty, unit_price_minor
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, order.ID, i, item.ProductID, item.Title, item.ColorKey, item.Size, item.Qty, item.UnitPriceMinor); err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit order: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := r.scanOrder(ctx, r.db.QueryRowContext(ctx, `
		SELECT id, status, payment_method,
		       subtotal_minor, shipping_minor, total_minor,
		       first_name, last_name, email, phone, address, city, country,
		       slip_reference, slip_number, payment_id, payment_amount_minor,
		       version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) Patch(ctx context.Context, id string, patch domain.OrderPatch) (domain.Order, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: begin tx: %w", domain.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := r.scanOrder(ctx, tx.QueryRowContext(ctx, `
		SELECT id, status, payment_method,
		       subtotal_minor, shipping_minor, total_minor,
		       first_name, last_name, email, phone, address, city, country,
		       slip_reference, slip_number, payment_id, payment_amount_minor,
		       version, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return domain.Order{}, err
	}

	if patch.Status != nil && !order.Status.CanTransitionTo(*patch.Status) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, *patch.Status)
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

	row := tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $1, payment_id = $2, payment_amount_minor = $3,
		    slip_reference = $4, slip_number = $5,
		    version = version + 1, updated_at = NOW()
		WHERE id = $6
		RETURNING version, updated_at
	`,
		string(order.Status), order.PaymentID, order.PaymentAmountMinor,
		order.SlipReference, order.SlipNumber, id,
	)
	if err := row.Scan(&order.Version, &order.UpdatedAt); err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("%w: commit patch: %w", domain.ErrStoreUnavailable, err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *orderRepository) scanOrder(_ context.Context, row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		paymentMethod string
	)
	err := row.Scan(
		&order.ID, &status, &paymentMethod,
		&order.SubtotalMinor, &order.ShippingMinor, &order.TotalMinor,
		&order.Customer.FirstName, &order.Customer.LastName, &order.Customer.Email,
		&order.Customer.Phone, &order.Customer.Address, &order.Customer.City, &order.Customer.Country,
		&order.SlipReference, &order.SlipNumber, &order.PaymentID, &order.PaymentAmountMinor,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, title, color_key, size_label, qty, unit_price_minor
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Title, &item.ColorKey, &item.Size, &item.Qty, &item.UnitPriceMinor); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
