package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type reservationLedger struct {
	db *sql.DB
}

// NewReservationLedger создаёт PostgreSQL-реализацию ReservationLedger.
func NewReservationLedger(store *Store) domain.ReservationLedger {
	return &reservationLedger{db: store.DB()}
}

func (l *reservationLedger) Record(ctx context.Context, res domain.Reservation) error {
	if errs := res.Validate(); len(errs) > 0 {
		return errs[0]
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (order_id, id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, res.OrderID, res.ID, string(res.Status), res.CreatedAt, res.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrReservationExists
			return err
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	for i, line := range res.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO reservation_lines (order_id, position, product_id, color_key, size_label, qty)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, res.OrderID, i, line.ProductID, line.ColorKey, line.Size, line.Qty); err != nil {
			return fmt.Errorf("insert reservation line %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit reservation: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (l *reservationLedger) Get(ctx context.Context, orderID string) (domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		res    domain.Reservation
		status string
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT order_id, id, status, created_at, updated_at
		FROM reservations
		WHERE order_id = $1
	`, orderID).Scan(&res.OrderID, &res.ID, &status, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	res.Status = domain.ReservationStatus(status)

	lines, err := l.loadLines(ctx, orderID)
	if err != nil {
		return domain.Reservation{}, err
	}
	res.Lines = lines

	return res, nil
}

// SetStatus выполняет conditional update: конкурирующие освобождения одного
// резерва сериализуются по условию status = from.
func (l *reservationLedger) SetStatus(ctx context.Context, orderID string, from, to domain.ReservationStatus) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx, `
		UPDATE reservations
		SET status = $1, updated_at = NOW()
		WHERE order_id = $2 AND status = $3
	`, string(to), orderID, string(from))
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected != 1 {
		var exists bool
		if err := l.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM reservations WHERE order_id = $1)
		`, orderID).Scan(&exists); err != nil {
			return fmt.Errorf("check reservation: %w", err)
		}
		if !exists {
			return domain.ErrReservationNotFound
		}
		return domain.ErrVersionConflict
	}
	return nil
}

func (l *reservationLedger) ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := l.db.QueryContext(ctx, `
		SELECT order_id, id, status, created_at, updated_at
		FROM reservations
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, string(domain.ReservationStatusHeld), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list held reservations: %w", err)
	}
	defer rows.Close()

	var result []domain.Reservation
	for rows.Next() {
		var (
			res    domain.Reservation
			status string
		)
		if err := rows.Scan(&res.OrderID, &res.ID, &status, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.Status = domain.ReservationStatus(status)
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}

	for i := range result {
		lines, err := l.loadLines(ctx, result[i].OrderID)
		if err != nil {
			return nil, err
		}
		result[i].Lines = lines
	}

	return result, nil
}

func (l *reservationLedger) loadLines(ctx context.Context, orderID string) ([]domain.ReservationLine, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT product_id, color_key, size_label, qty
		FROM reservation_lines
		WHERE order_id = $1
		ORDER BY position
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list reservation lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.ReservationLine
	for rows.Next() {
		var line domain.ReservationLine
		if err := rows.Scan(&line.ProductID, &line.ColorKey, &line.Size, &line.Qty); err != nil {
			return nil, fmt.Errorf("scan reservation line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation lines: %w", err)
	}

	return lines, nil
}

var _ domain.ReservationLedger = (*reservationLedger)(nil)
