package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supabase-community/postgrest-go"
)

const (
	ReportsTable         = "user_reports"
	AdminActionsTable    = "admin_actions"
	EventsTable          = "events"
	TicketPurchasesTable = "ticket_purchases"
)

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportActioned  ReportStatus = "actioned"
	ReportDismissed ReportStatus = "dismissed"
)

type Report struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	ReporterID     uuid.UUID    `db:"reporter_id" json:"reporter_id"`
	ReportedUserID uuid.UUID    `db:"reported_user_id" json:"reported_user_id"`
	Reason         string       `db:"reason" json:"reason"`
	Details        string       `db:"details" json:"details,omitempty"`
	Status         ReportStatus `db:"status" json:"status"`
	ReviewedBy     *uuid.UUID   `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

func (r *Report) IsTerminal() bool {
	return r.Status == ReportActioned || r.Status == ReportDismissed
}

// AvailableActions lists what an admin can still do with the report.
func (r *Report) AvailableActions() []string {
	if r.IsTerminal() {
		return []string{}
	}
	return []string{"dismiss", "action"}
}

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventFlagged   EventStatus = "flagged"
	EventCancelled EventStatus = "cancelled"
)

// Event is a public listing in the events table (moderated by admins).
type Event struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	OrganizerID   uuid.UUID   `db:"organizer_id" json:"organizer_id"`
	Title         string      `db:"title" json:"title"`
	Venue         string      `db:"venue" json:"venue,omitempty"`
	EventDate     EventDate   `db:"event_date" json:"event_date"`
	Status        EventStatus `db:"status" json:"status"`
	FlaggedReason string      `db:"flagged_reason" json:"flagged_reason,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

type TicketStatus string

const (
	TicketPaid     TicketStatus = "paid"
	TicketRefunded TicketStatus = "refunded"
)

type TicketPurchase struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	EventID    uuid.UUID       `db:"event_id" json:"event_id"`
	TierID     *uuid.UUID      `db:"tier_id" json:"tier_id,omitempty"`
	BuyerID    uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Currency   string          `db:"currency" json:"currency"`
	Status     TicketStatus    `db:"status" json:"status"`
	RefundedAt *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

type AdminActionType string

const (
	ActionDismissReport AdminActionType = "dismiss_report"
	ActionActionReport  AdminActionType = "action_report"
	ActionSuspendUser   AdminActionType = "suspend_user"
	ActionUnsuspendUser AdminActionType = "unsuspend_user"
	ActionFlagEvent     AdminActionType = "flag_event"
	ActionDeleteEvent   AdminActionType = "delete_event"
	ActionRefundTicket  AdminActionType = "refund_ticket"
)

type AdminAction struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	AdminID    uuid.UUID       `db:"admin_id" json:"admin_id"`
	ActionType AdminActionType `db:"action_type" json:"action_type"`
	TargetType string          `db:"target_type" json:"target_type"`
	TargetID   uuid.UUID       `db:"target_id" json:"target_id"`
	Reason     string          `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// ModerationRepo is the read side of the admin views.
type ModerationRepo interface {
	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)
	ListReports(ctx context.Context, status ReportStatus, offset, limit int) ([]*Report, int, error)
	ListEvents(ctx context.Context, status EventStatus, offset, limit int) ([]*Event, int, error)
	ListTicketPurchases(ctx context.Context, status TicketStatus, offset, limit int) ([]*TicketPurchase, int, error)
	ListAdminActions(ctx context.Context, offset, limit int) ([]*AdminAction, int, error)
}

func listPage[T any](q *postgrest.FilterBuilder, orderBy string, offset, limit int) ([]*T, int, error) {
	from, to := rangeOf(offset, limit)
	raw, count, err := q.
		Order(orderBy, &postgrest.OrderOpts{Ascending: false}).
		Range(from, to, "").
		Execute()
	if err != nil {
		return nil, 0, err
	}
	rows, err := decodeRows[T](raw)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*T, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, int(count), nil
}

func (su *SupabaseRepo) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	raw, _, err := su.supabaseClient.From(ReportsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeOne[Report](raw, "report")
}

func (su *SupabaseRepo) ListReports(ctx context.Context, status ReportStatus, offset, limit int) ([]*Report, int, error) {
	q := su.supabaseClient.From(ReportsTable).Select("*", "exact", false)
	if status != "" {
		q = q.Eq("status", string(status))
	}
	rows, total, err := listPage[Report](q, "created_at", offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	return rows, total, nil
}

func (su *SupabaseRepo) ListEvents(ctx context.Context, status EventStatus, offset, limit int) ([]*Event, int, error) {
	q := su.supabaseClient.From(EventsTable).Select("*", "exact", false)
	if status != "" {
		q = q.Eq("status", string(status))
	}
	rows, total, err := listPage[Event](q, "created_at", offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	return rows, total, nil
}

func (su *SupabaseRepo) ListTicketPurchases(ctx context.Context, status TicketStatus, offset, limit int) ([]*TicketPurchase, int, error) {
	q := su.supabaseClient.From(TicketPurchasesTable).Select("*", "exact", false)
	if status != "" {
		q = q.Eq("status", string(status))
	}
	rows, total, err := listPage[TicketPurchase](q, "created_at", offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ticket purchases: %w", err)
	}
	return rows, total, nil
}

func (su *SupabaseRepo) ListAdminActions(ctx context.Context, offset, limit int) ([]*AdminAction, int, error) {
	q := su.supabaseClient.From(AdminActionsTable).Select("*", "exact", false)
	rows, total, err := listPage[AdminAction](q, "created_at", offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list admin actions: %w", err)
	}
	return rows, total, nil
}
