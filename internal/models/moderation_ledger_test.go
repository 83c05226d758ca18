package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportCols = []string{"id", "reporter_id", "reported_user_id", "reason", "details", "status", "reviewed_by", "reviewed_at", "created_at"}

var purchaseCols = []string{"id", "event_id", "tier_id", "buyer_id", "quantity", "amount", "currency", "status", "refunded_at", "created_at"}

func resolution(status ReportStatus) ReportResolution {
	return ReportResolution{
		ReportID: uuid.New(),
		AdminID:  uuid.New(),
		Status:   status,
		Reason:   "harassment confirmed",
		At:       sampleNow,
	}
}

func resolvedReportRow(res ReportResolution, reported uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows(reportCols).AddRow(res.ReportID.String(), uuid.NewString(), reported.String(),
		"harassment", nil, string(res.Status), res.AdminID.String(), res.At, sampleNow.Add(-24*time.Hour))
}

func existsRow(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

func TestResolveReportRollsBackWhenAuditFails(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := resolution(ReportActioned)
	reported := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(sqlFragment("UPDATE user_reports")).
		WithArgs(res.ReportID, ReportActioned, res.AdminID, sampleNow, ReportPending).
		WillReturnRows(resolvedReportRow(res, reported))
	mock.ExpectExec(sqlFragment("UPDATE user_profiles SET is_suspended = true")).
		WithArgs(reported, sampleNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlFragment("INSERT INTO admin_actions")).
		WillReturnError(errors.New("admin_actions: permission denied"))
	mock.ExpectRollback()

	report, err := repo.ResolveReport(context.Background(), res)
	assert.ErrorContains(t, err, "failed to record admin action")
	assert.Nil(t, report)
}

func TestResolveReportCommitsWithAudit(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := resolution(ReportDismissed)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlFragment("UPDATE user_reports")).
		WillReturnRows(resolvedReportRow(res, uuid.New()))
	mock.ExpectExec(sqlFragment("INSERT INTO admin_actions")).
		WithArgs(sqlmock.AnyArg(), res.AdminID, ActionDismissReport, "report", res.ReportID, res.Reason, sampleNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := repo.ResolveReport(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, ReportDismissed, report.Status)
	require.NotNil(t, report.ReviewedBy)
	assert.Equal(t, res.AdminID, *report.ReviewedBy)
}

func TestResolveReportTwiceConflicts(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := resolution(ReportActioned)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlFragment("UPDATE user_reports")).
		WillReturnRows(sqlmock.NewRows(reportCols))
	mock.ExpectQuery(sqlFragment("SELECT EXISTS (SELECT 1 FROM user_reports WHERE id = $1)")).
		WithArgs(res.ReportID).
		WillReturnRows(existsRow(true))
	mock.ExpectRollback()

	_, err := repo.ResolveReport(context.Background(), res)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestResolveReportMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := resolution(ReportDismissed)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlFragment("UPDATE user_reports")).
		WillReturnRows(sqlmock.NewRows(reportCols))
	mock.ExpectQuery(sqlFragment("SELECT EXISTS (SELECT 1 FROM user_reports")).
		WillReturnRows(existsRow(false))
	mock.ExpectRollback()

	_, err := repo.ResolveReport(context.Background(), res)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveReportRejectsPendingStatus(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.ResolveReport(context.Background(), resolution(ReportPending))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetUserSuspendedRollsBackWhenAuditFails(t *testing.T) {
	repo, mock := newMockRepo(t)
	user, admin := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(sqlFragment("UPDATE user_profiles SET is_suspended = $2")).
		WithArgs(user, true, sampleNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlFragment("INSERT INTO admin_actions")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.SetUserSuspended(context.Background(), user, admin, true, "spam", sampleNow)
	assert.Error(t, err)
}

func TestSetUserSuspendedNoChangeConflicts(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(sqlFragment("UPDATE user_profiles SET is_suspended = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(sqlFragment("SELECT EXISTS (SELECT 1 FROM user_profiles")).
		WithArgs(user).
		WillReturnRows(existsRow(true))
	mock.ExpectRollback()

	err := repo.SetUserSuspended(context.Background(), user, uuid.New(), false, "appeal", sampleNow)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDeleteEventMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(sqlFragment("DELETE FROM events WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteEvent(context.Background(), uuid.New(), uuid.New(), "duplicate", sampleNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefundTicketTwiceConflicts(t *testing.T) {
	repo, mock := newMockRepo(t)
	purchase := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(sqlFragment("UPDATE ticket_purchases SET status = $2")).
		WithArgs(purchase, TicketRefunded, sampleNow, TicketPaid).
		WillReturnRows(sqlmock.NewRows(purchaseCols))
	mock.ExpectQuery(sqlFragment("SELECT EXISTS (SELECT 1 FROM ticket_purchases WHERE id = $1)")).
		WithArgs(purchase).
		WillReturnRows(existsRow(true))
	mock.ExpectRollback()

	_, err := repo.RefundTicket(context.Background(), purchase, uuid.New(), "event cancelled", sampleNow)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRefundTicketReturnsSeatsToTier(t *testing.T) {
	repo, mock := newMockRepo(t)
	purchase, tier, admin := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(sqlFragment("UPDATE ticket_purchases SET status = $2")).
		WillReturnRows(sqlmock.NewRows(purchaseCols).AddRow(purchase.String(), uuid.NewString(), tier.String(), uuid.NewString(),
			3, "15000", DefaultCurrency, string(TicketRefunded), sampleNow, sampleNow.Add(-240*time.Hour)))
	mock.ExpectExec(sqlFragment("UPDATE ticket_tiers SET sold = GREATEST(sold - $2, 0)")).
		WithArgs(tier, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlFragment("INSERT INTO admin_actions")).
		WithArgs(sqlmock.AnyArg(), admin, ActionRefundTicket, "ticket_purchase", purchase, "event cancelled", sampleNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := repo.RefundTicket(context.Background(), purchase, admin, "event cancelled", sampleNow)
	require.NoError(t, err)
	assert.Equal(t, TicketRefunded, p.Status)
	require.NotNil(t, p.TierID)
	assert.Equal(t, tier, *p.TierID)
	require.NotNil(t, p.RefundedAt)
}

func TestRefundTicketRollsBackWhenAuditFails(t *testing.T) {
	repo, mock := newMockRepo(t)
	purchase := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(sqlFragment("UPDATE ticket_purchases SET status = $2")).
		WillReturnRows(sqlmock.NewRows(purchaseCols).AddRow(purchase.String(), uuid.NewString(), nil, uuid.NewString(),
			1, "5000", DefaultCurrency, string(TicketRefunded), sampleNow, sampleNow))
	mock.ExpectExec(sqlFragment("INSERT INTO admin_actions")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	p, err := repo.RefundTicket(context.Background(), purchase, uuid.New(), "fraud", sampleNow)
	assert.Error(t, err)
	assert.Nil(t, p)
}
