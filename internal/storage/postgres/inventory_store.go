package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const opTimeout = 5 * time.Second

// InventoryStore хранит товарные документы в PostgreSQL. Conditional commit
// реализован через колонку version: UPDATE с проверкой ожидаемой версии внутри
// одной транзакции на все документы чекаута.
type InventoryStore struct {
	db *sql.DB
}

// NewInventoryStore создаёт PostgreSQL-реализацию InventoryStore.
func NewInventoryStore(store *Store) *InventoryStore {
	return &InventoryStore{db: store.DB()}
}

func (s *InventoryStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, price_minor, discount_pct, available_qty, version, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Title, &product.PriceMinor, &product.DiscountPct,
		&product.AvailableQty, &product.Version, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	colors, err := s.loadColors(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	product.Colors = colors

	return product, nil
}

func (s *InventoryStore) loadColors(ctx context.Context, productID string) ([]domain.ColorVariant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, color, qty
		FROM color_variants
		WHERE product_id = $1
		ORDER BY position
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("list color variants: %w", err)
	}
	defer rows.Close()

	var colors []domain.ColorVariant
	for rows.Next() {
		var color domain.ColorVariant
		if err := rows.Scan(&color.Key, &color.Name, &color.Color, &color.Qty); err != nil {
			return nil, fmt.Errorf("scan color variant: %w", err)
		}
		colors = append(colors, color)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate color variants: %w", err)
	}

	for i := range colors {
		sizes, err := s.loadSizes(ctx, productID, colors[i].Key)
		if err != nil {
			return nil, err
		}
		colors[i].Sizes = sizes
	}

	return colors, nil
}

func (s *InventoryStore) loadSizes(ctx context.Context, productID, colorKey string) ([]domain.SizeVariant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, qty
		FROM size_variants
		WHERE product_id = $1 AND color_key = $2
		ORDER BY position
	`, productID, colorKey)
	if err != nil {
		return nil, fmt.Errorf("list size variants: %w", err)
	}
	defer rows.Close()

	var sizes []domain.SizeVariant
	for rows.Next() {
		var size domain.SizeVariant
		if err := rows.Scan(&size.Label, &size.Qty); err != nil {
			return nil, fmt.Errorf("scan size variant: %w", err)
		}
		sizes = append(sizes, size)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate size variants: %w", err)
	}

	return sizes, nil
}

// CommitProducts записывает документы одной транзакцией. Несовпадение версии
// любого из них откатывает всё и возвращает ErrVersionConflict; отсутствующий
// документ — ErrProductNotFound.
func (s *InventoryStore) CommitProducts(ctx context.Context, products []domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	for i := range products {
		if errs := products[i].ValidateInvariants(); len(errs) > 0 {
			return errs[0]
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range products {
		product := &products[i]

		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			UPDATE products
			SET title = $1, price_minor = $2, discount_pct = $3,
			    available_qty = $4, version = version + 1, updated_at = NOW()
			WHERE id = $5 AND version = $6
		`,
			product.Title, product.PriceMinor, product.DiscountPct,
			product.AvailableQty, product.ID, product.Version,
		)
		if err != nil {
			return fmt.Errorf("update product %s: %w", product.ID, err)
		}
		affected, raErr := res.RowsAffected()
		if raErr != nil {
			err = fmt.Errorf("rows affected: %w", raErr)
			return err
		}
		if affected != 1 {
			var exists bool
			if checkErr := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, product.ID,
			).Scan(&exists); checkErr != nil {
				err = fmt.Errorf("check product %s: %w", product.ID, checkErr)
				return err
			}
			if !exists {
				err = domain.ErrProductNotFound
				return err
			}
			err = domain.ErrVersionConflict
			return err
		}

		if err = s.rewriteVariants(ctx, tx, product); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit inventory: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Seed записывает документ напрямую, минуя проверку версий. Используется для
// первоначального наполнения каталога; конкурентные коммиты через этот путь
// не ходят.
func (s *InventoryStore) Seed(ctx context.Context, product domain.Product) (err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return errs[0]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, title, price_minor, discount_pct, available_qty, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, price_minor = EXCLUDED.price_minor,
		    discount_pct = EXCLUDED.discount_pct, available_qty = EXCLUDED.available_qty,
		    version = EXCLUDED.version, updated_at = NOW()
	`,
		product.ID, product.Title, product.PriceMinor, product.DiscountPct,
		product.AvailableQty, product.Version,
	); err != nil {
		return fmt.Errorf("seed product %s: %w", product.ID, err)
	}

	if err = s.rewriteVariants(ctx, tx, &product); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit seed: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// rewriteVariants перезаписывает вариантные строки документа целиком.
func (s *InventoryStore) rewriteVariants(ctx context.Context, tx *sql.Tx, product *domain.Product) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM color_variants WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("clear color variants for %s: %w", product.ID, err)
	}

	for i, color := range product.Colors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO color_variants (product_id, key, position, name, color, qty)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, product.ID, color.Key, i, color.Name, color.Color, color.Qty); err != nil {
			return fmt.Errorf("insert color variant %s/%s: %w", product.ID, color.Key, err)
		}
		for j, size := range color.Sizes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO size_variants (product_id, color_key, label, position, qty)
				VALUES ($1, $2, $3, $4, $5)
			`, product.ID, color.Key, size.Label, j, size.Qty); err != nil {
				return fmt.Errorf("insert size variant %s/%s/%s: %w", product.ID, color.Key, size.Label, err)
			}
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.InventoryStore = (*InventoryStore)(nil)
