package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/models"
)

func newJobFixture(t *testing.T) (*JobService, *mockJobsRepo, *recordingPublisher) {
	t.Helper()
	repo := new(mockJobsRepo)
	pub := new(recordingPublisher)
	svc := NewJobService(repo, pub, quietLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, pub
}

func openJob() *models.JobPosting {
	return &models.JobPosting{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Title:    "Wedding saxophonist",
		Status:   models.JobOpen,
	}
}

func proposal() *models.JobApplication {
	return &models.JobApplication{
		Proposal:     "Ten years of live wedding sets around Lagos.",
		QuotedAmount: decimal.NewFromInt(150000),
	}
}

func TestApplyRequiresKYC(t *testing.T) {
	svc, repo, _ := newJobFixture(t)

	_, err := svc.Apply(context.Background(), Actor{ID: uuid.New(), Role: models.RoleMusician}, uuid.New(), proposal())
	assert.ErrorIs(t, err, models.ErrForbidden)
	repo.AssertNotCalled(t, "GetJob", mock.Anything, mock.Anything)
}

func TestApplyClosedJob(t *testing.T) {
	svc, repo, _ := newJobFixture(t)
	job := openJob()
	job.Status = models.JobClosed
	repo.On("GetJob", mock.Anything, job.ID).Return(job, nil)

	_, err := svc.Apply(context.Background(), Actor{ID: uuid.New(), Role: models.RoleMusician, KYCVerified: true}, job.ID, proposal())
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestApplyNotifiesJobOwner(t *testing.T) {
	svc, repo, pub := newJobFixture(t)
	job := openJob()
	musician := Actor{ID: uuid.New(), Role: models.RoleMusician, KYCVerified: true}
	repo.On("GetJob", mock.Anything, job.ID).Return(job, nil)
	repo.On("CreateApplication", mock.Anything, mock.MatchedBy(func(a *models.JobApplication) bool {
		return a.JobID == job.ID && a.MusicianID == musician.ID && a.Status == models.ApplicationPending
	})).Return(&models.JobApplication{ID: uuid.New(), JobID: job.ID, MusicianID: musician.ID}, nil)

	_, err := svc.Apply(context.Background(), musician, job.ID, proposal())
	require.NoError(t, err)
	assert.Equal(t, []string{events.JobApplicationReceived}, pub.keys())
	assert.Equal(t, job.ClientID, pub.sent[0].RecipientID)
}

func TestAcceptApplication(t *testing.T) {
	svc, repo, pub := newJobFixture(t)
	job := openJob()
	app := &models.JobApplication{ID: uuid.New(), JobID: job.ID, MusicianID: uuid.New(), Status: models.ApplicationPending}
	accepted := *app
	accepted.Status = models.ApplicationAccepted

	repo.On("GetApplication", mock.Anything, app.ID).Return(app, nil)
	repo.On("GetJob", mock.Anything, job.ID).Return(job, nil)
	repo.On("UpdateApplicationStatus", mock.Anything, app.ID, models.ApplicationPending, models.ApplicationAccepted).Return(&accepted, nil)

	got, err := svc.AcceptApplication(context.Background(), Actor{ID: job.ClientID, Role: models.RoleClient}, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, got.Status)
	assert.Equal(t, []string{events.JobApplicationAccepted}, pub.keys())
	assert.Equal(t, app.MusicianID, pub.sent[0].RecipientID)
}

func TestRejectApplicationOnlyOwner(t *testing.T) {
	svc, repo, _ := newJobFixture(t)
	job := openJob()
	app := &models.JobApplication{ID: uuid.New(), JobID: job.ID, Status: models.ApplicationPending}
	repo.On("GetApplication", mock.Anything, app.ID).Return(app, nil)
	repo.On("GetJob", mock.Anything, job.ID).Return(job, nil)

	_, err := svc.RejectApplication(context.Background(), Actor{ID: uuid.New(), Role: models.RoleClient}, app.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestCreateJobValidation(t *testing.T) {
	svc, repo, _ := newJobFixture(t)
	client := Actor{ID: uuid.New(), Role: models.RoleClient}

	past := &models.JobPosting{Title: "Gig", Description: "Live band", Location: "Abuja", Budget: decimal.NewFromInt(1000), EventDate: models.NewEventDate(fixedNow.Add(-time.Hour))}
	_, err := svc.CreateJob(context.Background(), client, past)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.CreateJob(context.Background(), Actor{ID: uuid.New(), Role: models.RoleMusician}, past)
	assert.ErrorIs(t, err, models.ErrForbidden)
	repo.AssertNotCalled(t, "CreateJob", mock.Anything, mock.Anything)
}
