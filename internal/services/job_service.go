package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/mq"
)

type JobService struct {
	base
	jobs models.JobsRepo
}

func NewJobService(jobs models.JobsRepo, pub mq.EventPublisher, logger *slog.Logger) *JobService {
	return &JobService{
		base: newBase(nil, pub, logger),
		jobs: jobs,
	}
}

func (js *JobService) ListOpenJobs(ctx context.Context, offset, limit int) ([]*models.JobPosting, int, error) {
	offset, limit = clampPage(offset, limit)
	return js.jobs.ListOpenJobs(ctx, offset, limit)
}

func (js *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.JobPosting, error) {
	return js.jobs.GetJob(ctx, id)
}

func (js *JobService) CreateJob(ctx context.Context, actor Actor, job *models.JobPosting) (*models.JobPosting, error) {
	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if !actor.IsClient() {
		return nil, fmt.Errorf("only clients can post jobs: %w", models.ErrForbidden)
	}
	if err := models.Validate.Struct(job); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	if !job.Budget.IsPositive() {
		return nil, fmt.Errorf("budget must be positive: %w", models.ErrInvalidInput)
	}
	if job.EventDate.IsZero() || !job.EventDate.After(js.now()) {
		return nil, fmt.Errorf("event date must be in the future: %w", models.ErrInvalidInput)
	}

	job.ID = uuid.New()
	job.ClientID = actor.ID
	job.Status = models.JobOpen
	job.CreatedAt = js.now()
	return js.jobs.CreateJob(ctx, job)
}

// Apply submits a proposal. Musicians must have completed KYC.
func (js *JobService) Apply(ctx context.Context, actor Actor, jobID uuid.UUID, app *models.JobApplication) (*models.JobApplication, error) {
	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if !actor.IsMusician() {
		return nil, fmt.Errorf("only musicians can apply: %w", models.ErrForbidden)
	}
	if !actor.KYCVerified {
		return nil, fmt.Errorf("verify your identity before applying: %w", models.ErrForbidden)
	}
	app.Proposal = strings.TrimSpace(app.Proposal)
	if err := models.Validate.Struct(app); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	if !app.QuotedAmount.IsPositive() {
		return nil, fmt.Errorf("quoted amount must be positive: %w", models.ErrInvalidInput)
	}

	job, err := js.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobOpen {
		return nil, fmt.Errorf("job is no longer open: %w", models.ErrConflict)
	}
	if job.ClientID == actor.ID {
		return nil, fmt.Errorf("cannot apply to your own job: %w", models.ErrForbidden)
	}

	app.ID = uuid.New()
	app.JobID = jobID
	app.MusicianID = actor.ID
	app.Status = models.ApplicationPending
	app.CreatedAt = js.now()
	created, err := js.jobs.CreateApplication(ctx, app)
	if err != nil {
		return nil, err
	}

	js.publish(ctx, events.New(events.JobApplicationReceived, job.ClientID, "New application",
		fmt.Sprintf("A musician applied to %q.", job.Title)).
		With("job_id", jobID.String()).
		With("application_id", created.ID.String()))
	return created, nil
}

func (js *JobService) ownedJob(ctx context.Context, actor Actor, jobID uuid.UUID) (*models.JobPosting, error) {
	job, err := js.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != actor.ID && !actor.IsStaff() {
		return nil, fmt.Errorf("only the job owner can see its applications: %w", models.ErrForbidden)
	}
	return job, nil
}

func (js *JobService) ListApplications(ctx context.Context, actor Actor, jobID uuid.UUID, offset, limit int) ([]*models.JobApplication, int, error) {
	if _, err := js.ownedJob(ctx, actor, jobID); err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	return js.jobs.ListApplications(ctx, jobID, offset, limit)
}

func (js *JobService) AcceptApplication(ctx context.Context, actor Actor, applicationID uuid.UUID) (*models.JobApplication, error) {
	return js.decide(ctx, actor, applicationID, models.ApplicationAccepted)
}

func (js *JobService) RejectApplication(ctx context.Context, actor Actor, applicationID uuid.UUID) (*models.JobApplication, error) {
	return js.decide(ctx, actor, applicationID, models.ApplicationRejected)
}

func (js *JobService) decide(ctx context.Context, actor Actor, applicationID uuid.UUID, to models.ApplicationStatus) (*models.JobApplication, error) {
	app, err := js.jobs.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	job, err := js.jobs.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != actor.ID {
		return nil, fmt.Errorf("only the job owner can decide on applications: %w", models.ErrForbidden)
	}
	if app.Status != models.ApplicationPending {
		return nil, fmt.Errorf("application was already %s: %w", app.Status, models.ErrConflict)
	}

	updated, err := js.jobs.UpdateApplicationStatus(ctx, applicationID, models.ApplicationPending, to)
	if err != nil {
		return nil, err
	}

	key, title := events.JobApplicationAccepted, "Application accepted"
	if to == models.ApplicationRejected {
		key, title = events.JobApplicationRejected, "Application not selected"
	}
	js.publish(ctx, events.New(key, updated.MusicianID, title,
		fmt.Sprintf("Your application to %q was %s.", job.Title, to)).
		With("job_id", job.ID.String()))
	return updated, nil
}
