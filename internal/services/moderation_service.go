package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/cache"
	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/mq"
	"github.com/joshua-takyi/gigbay/internal/obs"
)

type ModerationService struct {
	base
	reads  models.ModerationRepo
	ledger models.ModerationLedger
}

func NewModerationService(reads models.ModerationRepo, ledger models.ModerationLedger, locks *cache.Store, pub mq.EventPublisher, logger *slog.Logger) *ModerationService {
	return &ModerationService{
		base:   newBase(locks, pub, logger),
		reads:  reads,
		ledger: ledger,
	}
}

type ReportView struct {
	*models.Report
	AvailableActions []string `json:"available_actions"`
}

func reportView(r *models.Report) *ReportView {
	return &ReportView{Report: r, AvailableActions: r.AvailableActions()}
}

func requireStaff(actor Actor) error {
	if !actor.IsStaff() {
		return fmt.Errorf("admin or support access required: %w", models.ErrForbidden)
	}
	return nil
}

func (ms *ModerationService) ListReports(ctx context.Context, actor Actor, status models.ReportStatus, offset, limit int) ([]*ReportView, int, error) {
	if err := requireStaff(actor); err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	reports, total, err := ms.reads.ListReports(ctx, status, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*ReportView, len(reports))
	for i, r := range reports {
		views[i] = reportView(r)
	}
	return views, total, nil
}

func (ms *ModerationService) GetReport(ctx context.Context, actor Actor, id uuid.UUID) (*ReportView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	r, err := ms.reads.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return reportView(r), nil
}

func (ms *ModerationService) DismissReport(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*ReportView, error) {
	return ms.resolve(ctx, actor, id, models.ReportDismissed, reason)
}

// ActionReport upholds the report and suspends the reported user.
func (ms *ModerationService) ActionReport(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*ReportView, error) {
	return ms.resolve(ctx, actor, id, models.ReportActioned, reason)
}

func (ms *ModerationService) resolve(ctx context.Context, actor Actor, id uuid.UUID, status models.ReportStatus, reason string) (_ *ReportView, err error) {
	ctx, span := obs.Start(ctx, "moderation.resolve_report")
	defer func() { obs.End(span, err) }()

	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	report, err := ms.ledger.ResolveReport(ctx, models.ReportResolution{
		ReportID: id,
		AdminID:  actor.ID,
		Status:   status,
		Reason:   strings.TrimSpace(reason),
		At:       ms.now(),
	})
	if err != nil {
		return nil, err
	}

	ms.publish(ctx, events.New(events.ModerationReportResolved, report.ReporterID, "Report reviewed",
		fmt.Sprintf("Your report was reviewed and %s.", report.Status)).
		With("report_id", id.String()))
	if status == models.ReportActioned {
		ms.publish(ctx, events.New(events.ModerationUserSuspended, report.ReportedUserID, "Account suspended",
			"Your account was suspended after a report was reviewed."))
	}

	ms.logger.Info("report resolved", "report_id", id, "status", report.Status, "admin_id", actor.ID)
	return reportView(report), nil
}

func (ms *ModerationService) SuspendUser(ctx context.Context, actor Actor, userID uuid.UUID, reason string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if userID == actor.ID {
		return fmt.Errorf("you cannot suspend yourself: %w", models.ErrInvalidInput)
	}
	if err := ms.ledger.SetUserSuspended(ctx, userID, actor.ID, true, reason, ms.now()); err != nil {
		return err
	}
	ms.publish(ctx, events.New(events.ModerationUserSuspended, userID, "Account suspended", reason))
	return nil
}

func (ms *ModerationService) UnsuspendUser(ctx context.Context, actor Actor, userID uuid.UUID, reason string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	return ms.ledger.SetUserSuspended(ctx, userID, actor.ID, false, reason, ms.now())
}

func (ms *ModerationService) ListEvents(ctx context.Context, actor Actor, status models.EventStatus, offset, limit int) ([]*models.Event, int, error) {
	if err := requireStaff(actor); err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	return ms.reads.ListEvents(ctx, status, offset, limit)
}

func (ms *ModerationService) FlagEvent(ctx context.Context, actor Actor, eventID uuid.UUID, reason string) (*models.Event, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("a reason is required to flag an event: %w", models.ErrInvalidInput)
	}

	event, err := ms.ledger.FlagEvent(ctx, eventID, actor.ID, reason, ms.now())
	if err != nil {
		return nil, err
	}
	ms.publish(ctx, events.New(events.ModerationEventFlagged, event.OrganizerID, "Event flagged",
		fmt.Sprintf("%q was flagged: %s", event.Title, reason)).
		With("event_id", eventID.String()))
	return event, nil
}

func (ms *ModerationService) DeleteEvent(ctx context.Context, actor Actor, eventID uuid.UUID, reason string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	return ms.ledger.DeleteEvent(ctx, eventID, actor.ID, strings.TrimSpace(reason), ms.now())
}

func (ms *ModerationService) ListTicketPurchases(ctx context.Context, actor Actor, status models.TicketStatus, offset, limit int) ([]*models.TicketPurchase, int, error) {
	if err := requireStaff(actor); err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	return ms.reads.ListTicketPurchases(ctx, status, offset, limit)
}

func (ms *ModerationService) RefundTicket(ctx context.Context, actor Actor, purchaseID uuid.UUID, reason string) (_ *models.TicketPurchase, err error) {
	ctx, span := obs.Start(ctx, "moderation.refund_ticket")
	defer func() { obs.End(span, err) }()

	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	release, err := ms.lock(ctx, "refund-ticket", purchaseID)
	if err != nil {
		return nil, err
	}
	defer release()

	purchase, err := ms.ledger.RefundTicket(ctx, purchaseID, actor.ID, strings.TrimSpace(reason), ms.now())
	if err != nil {
		return nil, err
	}
	ms.publish(ctx, events.New(events.PaymentRefunded, purchase.BuyerID, "Ticket refunded",
		fmt.Sprintf("%s %s was refunded for your ticket.", purchase.Currency, purchase.Amount.StringFixed(2))).
		With("purchase_id", purchaseID.String()))
	return purchase, nil
}

func (ms *ModerationService) ListAdminActions(ctx context.Context, actor Actor, offset, limit int) ([]*models.AdminAction, int, error) {
	if err := requireStaff(actor); err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	return ms.reads.ListAdminActions(ctx, offset, limit)
}

var reportCSVHeader = []string{"id", "created_at", "status", "reporter_id", "reported_user_id", "reason", "details", "reviewed_by", "reviewed_at"}

func (ms *ModerationService) ExportReports(ctx context.Context, actor Actor, status models.ReportStatus, w io.Writer) error {
	if err := requireStaff(actor); err != nil {
		return err
	}

	out := newCSV(w, reportCSVHeader)
	err := eachPage(func(offset, limit int) (int, int, error) {
		reports, total, err := ms.reads.ListReports(ctx, status, offset, limit)
		if err != nil {
			return 0, 0, err
		}
		for _, r := range reports {
			reviewer := ""
			if r.ReviewedBy != nil {
				reviewer = r.ReviewedBy.String()
			}
			if err := out.row(r.ID.String(), formatTime(r.CreatedAt), string(r.Status), r.ReporterID.String(),
				r.ReportedUserID.String(), r.Reason, r.Details, reviewer, formatTimePtr(r.ReviewedAt)); err != nil {
				return 0, 0, err
			}
		}
		return len(reports), total, nil
	})
	if err != nil {
		return err
	}
	return out.flush()
}
