package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rtpbridge/internal/rtp/models"
	"rtpbridge/pkg/platform/sentinel"
)

// Postgres persists the aggregate across two tables: rtps for the current
// snapshot and rtp_events for the append-only transition log. Updates run
// in one transaction so the snapshot and its log never diverge.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const uniqueViolation = "23505"

func (s *Postgres) Save(ctx context.Context, rtp models.Rtp) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save rtp: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO rtps (
			resource_id, notice_number, amount_cents, description, subject,
			expiry_date, payer_id, payer_name, payee_id, payee_name,
			saving_datetime, sp_debtor, sp_creditor, iban, pay_trx_ref,
			confirmed, operation_id, event_dispatcher, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, rtp.ResourceID, rtp.NoticeNumber, rtp.AmountCents, rtp.Description, rtp.Subject,
		rtp.ExpiryDate, rtp.PayerID, rtp.PayerName, rtp.PayeeID, rtp.PayeeName,
		rtp.SavingDateTime, rtp.ServiceProviderDebtor, rtp.ServiceProviderCreditor,
		rtp.IBAN, rtp.PayTrxRef, rtp.Confirmed,
		nullable(rtp.OperationID), nullable(rtp.EventDispatcher), rtp.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert rtp: %w", err)
	}

	if err := appendEvents(ctx, tx, rtp.ResourceID, 0, rtp.Events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Postgres) Update(ctx context.Context, rtp models.Rtp) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update rtp: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE rtps SET status = $2 WHERE resource_id = $1`,
		rtp.ResourceID, rtp.Status)
	if err != nil {
		return fmt.Errorf("update rtp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}

	var stored int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM rtp_events WHERE resource_id = $1`,
		rtp.ResourceID).Scan(&stored); err != nil {
		return fmt.Errorf("count rtp events: %w", err)
	}
	if err := appendEvents(ctx, tx, rtp.ResourceID, stored, rtp.Events); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func appendEvents(ctx context.Context, tx pgx.Tx, resourceID uuid.UUID, from int, events []models.Event) error {
	for seq := from; seq < len(events); seq++ {
		ev := events[seq]
		var prec *string
		if ev.PrecStatus != nil {
			v := string(*ev.PrecStatus)
			prec = &v
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO rtp_events (resource_id, seq, occurred_at, prec_status, trigger_event)
			VALUES ($1, $2, $3, $4, $5)
		`, resourceID, seq, ev.Timestamp, prec, ev.TriggerEvent)
		if err != nil {
			return fmt.Errorf("append rtp event %d: %w", seq, err)
		}
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, resourceID uuid.UUID) (models.Rtp, error) {
	return s.find(ctx, `WHERE resource_id = $1`, resourceID)
}

func (s *Postgres) FindByOperationID(ctx context.Context, operationID, eventDispatcher string) (models.Rtp, error) {
	return s.find(ctx, `WHERE operation_id = $1 AND event_dispatcher = $2`, operationID, eventDispatcher)
}

func (s *Postgres) find(ctx context.Context, where string, args ...any) (models.Rtp, error) {
	var rtp models.Rtp
	var operationID, eventDispatcher *string
	err := s.pool.QueryRow(ctx, `
		SELECT resource_id, notice_number, amount_cents, description, subject,
			expiry_date, payer_id, payer_name, payee_id, payee_name,
			saving_datetime, sp_debtor, sp_creditor, iban, pay_trx_ref,
			confirmed, operation_id, event_dispatcher, status
		FROM rtps `+where,
		args...,
	).Scan(&rtp.ResourceID, &rtp.NoticeNumber, &rtp.AmountCents, &rtp.Description, &rtp.Subject,
		&rtp.ExpiryDate, &rtp.PayerID, &rtp.PayerName, &rtp.PayeeID, &rtp.PayeeName,
		&rtp.SavingDateTime, &rtp.ServiceProviderDebtor, &rtp.ServiceProviderCreditor,
		&rtp.IBAN, &rtp.PayTrxRef, &rtp.Confirmed, &operationID, &eventDispatcher, &rtp.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Rtp{}, sentinel.ErrNotFound
		}
		return models.Rtp{}, fmt.Errorf("find rtp: %w", err)
	}
	if operationID != nil {
		rtp.OperationID = *operationID
	}
	if eventDispatcher != nil {
		rtp.EventDispatcher = *eventDispatcher
	}

	rows, err := s.pool.Query(ctx, `
		SELECT occurred_at, prec_status, trigger_event
		FROM rtp_events
		WHERE resource_id = $1
		ORDER BY seq
	`, rtp.ResourceID)
	if err != nil {
		return models.Rtp{}, fmt.Errorf("load rtp events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev models.Event
		var prec *string
		if err := rows.Scan(&ev.Timestamp, &prec, &ev.TriggerEvent); err != nil {
			return models.Rtp{}, fmt.Errorf("scan rtp event: %w", err)
		}
		if prec != nil {
			status := models.RtpStatus(*prec)
			ev.PrecStatus = &status
		}
		rtp.Events = append(rtp.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return models.Rtp{}, fmt.Errorf("iterate rtp events: %w", err)
	}
	return rtp, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
