package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ModerationLedger applies an admin mutation and its admin_actions entry in
// one transaction, so the audit log never disagrees with the data.
type ModerationLedger interface {
	ResolveReport(ctx context.Context, res ReportResolution) (*Report, error)
	SetUserSuspended(ctx context.Context, userID, adminID uuid.UUID, suspended bool, reason string, at time.Time) error
	FlagEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string, at time.Time) (*Event, error)
	DeleteEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string, at time.Time) error
	RefundTicket(ctx context.Context, purchaseID, adminID uuid.UUID, reason string, at time.Time) (*TicketPurchase, error)
}

// ReportResolution closes a pending report. Actioning a report also suspends
// the reported user.
type ReportResolution struct {
	ReportID uuid.UUID
	AdminID  uuid.UUID
	Status   ReportStatus
	Reason   string
	At       time.Time
}

const reportColumns = `id, reporter_id, reported_user_id, reason, details, status, reviewed_by, reviewed_at, created_at`

func scanReport(row rowScanner) (*Report, error) {
	var (
		r          Report
		details    sql.NullString
		reviewedBy uuid.NullUUID
		reviewedAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.ReporterID, &r.ReportedUserID, &r.Reason, &details, &r.Status, &reviewedBy, &reviewedAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Details = details.String
	if reviewedBy.Valid {
		id := reviewedBy.UUID
		r.ReviewedBy = &id
	}
	if reviewedAt.Valid {
		r.ReviewedAt = &reviewedAt.Time
	}
	return &r, nil
}

func insertAdminAction(ctx context.Context, tx *sql.Tx, a AdminAction) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := tx.ExecContext(ctx, `
	INSERT INTO admin_actions (id, admin_id, action_type, target_type, target_id, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.AdminID, a.ActionType, a.TargetType, a.TargetID, a.Reason, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record admin action: %w", err)
	}
	return nil
}

// missingOrConflict tells apart "no such row" from "row exists but is not in
// the state the guarded UPDATE expected".
func missingOrConflict(ctx context.Context, tx *sql.Tx, table string, id uuid.UUID, what string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up %s: %w", what, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s was already handled: %w", what, ErrConflict)
}

func (pg *PostgresRepo) ResolveReport(ctx context.Context, res ReportResolution) (*Report, error) {
	if res.Status != ReportActioned && res.Status != ReportDismissed {
		return nil, fmt.Errorf("report can only be actioned or dismissed: %w", ErrInvalidInput)
	}

	var report *Report
	err := pg.WithTx(ctx, func(tx *sql.Tx) error {
		r, err := scanReport(tx.QueryRowContext(ctx, `
		UPDATE user_reports
		SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND status = $5
		RETURNING `+reportColumns, res.ReportID, res.Status, res.AdminID, res.At, ReportPending))
		if errors.Is(err, sql.ErrNoRows) {
			return missingOrConflict(ctx, tx, ReportsTable, res.ReportID, "report")
		}
		if err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}
		report = r

		action := ActionDismissReport
		if res.Status == ReportActioned {
			action = ActionActionReport
			if _, err := tx.ExecContext(ctx,
				`UPDATE user_profiles SET is_suspended = true, updated_at = $2 WHERE id = $1`,
				r.ReportedUserID, res.At); err != nil {
				return fmt.Errorf("failed to suspend reported user: %w", err)
			}
		}

		return insertAdminAction(ctx, tx, AdminAction{
			AdminID:    res.AdminID,
			ActionType: action,
			TargetType: "report",
			TargetID:   res.ReportID,
			Reason:     res.Reason,
			CreatedAt:  res.At,
		})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (pg *PostgresRepo) SetUserSuspended(ctx context.Context, userID, adminID uuid.UUID, suspended bool, reason string, at time.Time) error {
	return pg.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE user_profiles SET is_suspended = $2, updated_at = $3 WHERE id = $1 AND is_suspended <> $2`,
			userID, suspended, at)
		if err != nil {
			return fmt.Errorf("failed to update user suspension: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return missingOrConflict(ctx, tx, ProfileTable, userID, "user")
		}

		action := ActionSuspendUser
		if !suspended {
			action = ActionUnsuspendUser
		}
		return insertAdminAction(ctx, tx, AdminAction{
			AdminID:    adminID,
			ActionType: action,
			TargetType: "user",
			TargetID:   userID,
			Reason:     reason,
			CreatedAt:  at,
		})
	})
}

func (pg *PostgresRepo) FlagEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string, at time.Time) (*Event, error) {
	var event Event
	err := pg.WithTx(ctx, func(tx *sql.Tx) error {
		var venue, flagged sql.NullString
		err := tx.QueryRowContext(ctx, `
		UPDATE events SET status = $2, flagged_reason = $3
		WHERE id = $1 AND status <> $2
		RETURNING id, organizer_id, title, venue, event_date, status, flagged_reason, created_at
		`, eventID, EventFlagged, reason).Scan(&event.ID, &event.OrganizerID, &event.Title, &venue,
			&event.EventDate, &event.Status, &flagged, &event.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return missingOrConflict(ctx, tx, EventsTable, eventID, "event")
		}
		if err != nil {
			return fmt.Errorf("failed to flag event: %w", err)
		}
		event.Venue = venue.String
		event.FlaggedReason = flagged.String

		return insertAdminAction(ctx, tx, AdminAction{
			AdminID:    adminID,
			ActionType: ActionFlagEvent,
			TargetType: "event",
			TargetID:   eventID,
			Reason:     reason,
			CreatedAt:  at,
		})
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (pg *PostgresRepo) DeleteEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string, at time.Time) error {
	return pg.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, eventID)
		if err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("event: %w", ErrNotFound)
		}
		return insertAdminAction(ctx, tx, AdminAction{
			AdminID:    adminID,
			ActionType: ActionDeleteEvent,
			TargetType: "event",
			TargetID:   eventID,
			Reason:     reason,
			CreatedAt:  at,
		})
	})
}

func (pg *PostgresRepo) RefundTicket(ctx context.Context, purchaseID, adminID uuid.UUID, reason string, at time.Time) (*TicketPurchase, error) {
	var (
		p        TicketPurchase
		tierID   uuid.NullUUID
		refunded sql.NullTime
	)
	err := pg.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
		UPDATE ticket_purchases SET status = $2, refunded_at = $3
		WHERE id = $1 AND status = $4
		RETURNING id, event_id, tier_id, buyer_id, quantity, amount, currency, status, refunded_at, created_at
		`, purchaseID, TicketRefunded, at, TicketPaid).Scan(&p.ID, &p.EventID, &tierID, &p.BuyerID,
			&p.Quantity, &p.Amount, &p.Currency, &p.Status, &refunded, &p.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return missingOrConflict(ctx, tx, TicketPurchasesTable, purchaseID, "ticket purchase")
		}
		if err != nil {
			return fmt.Errorf("failed to refund ticket: %w", err)
		}

		if tierID.Valid {
			if _, err := tx.ExecContext(ctx,
				`UPDATE ticket_tiers SET sold = GREATEST(sold - $2, 0) WHERE id = $1`,
				tierID.UUID, p.Quantity); err != nil {
				return fmt.Errorf("failed to return tickets to tier: %w", err)
			}
		}

		return insertAdminAction(ctx, tx, AdminAction{
			AdminID:    adminID,
			ActionType: ActionRefundTicket,
			TargetType: "ticket_purchase",
			TargetID:   purchaseID,
			Reason:     reason,
			CreatedAt:  at,
		})
	})
	if err != nil {
		return nil, err
	}
	if tierID.Valid {
		id := tierID.UUID
		p.TierID = &id
	}
	if refunded.Valid {
		p.RefundedAt = &refunded.Time
	}
	return &p, nil
}
