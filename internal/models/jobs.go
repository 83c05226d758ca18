package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	JobPostingsTable     = "job_postings"
	JobApplicationsTable = "job_applications"
)

type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

type JobPosting struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ClientID    uuid.UUID       `db:"client_id" json:"client_id"`
	Title       string          `db:"title" json:"title" validate:"required,min=3,max=120"`
	Description string          `db:"description" json:"description" validate:"required,max=4000"`
	Budget      decimal.Decimal `db:"budget" json:"budget"`
	EventDate   EventDate       `db:"event_date" json:"event_date"`
	Location    string          `db:"location" json:"location" validate:"required"`
	Status      JobStatus       `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

type JobApplication struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	JobID        uuid.UUID         `db:"job_id" json:"job_id"`
	MusicianID   uuid.UUID         `db:"musician_id" json:"musician_id"`
	Proposal     string            `db:"proposal" json:"proposal" validate:"required,min=10,max=4000"`
	QuotedAmount decimal.Decimal   `db:"quoted_amount" json:"quoted_amount"`
	Status       ApplicationStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

type JobsRepo interface {
	ListOpenJobs(ctx context.Context, offset, limit int) ([]*JobPosting, int, error)
	GetJob(ctx context.Context, id uuid.UUID) (*JobPosting, error)
	CreateJob(ctx context.Context, job *JobPosting) (*JobPosting, error)
	CreateApplication(ctx context.Context, app *JobApplication) (*JobApplication, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*JobApplication, error)
	ListApplications(ctx context.Context, jobID uuid.UUID, offset, limit int) ([]*JobApplication, int, error)
	UpdateApplicationStatus(ctx context.Context, id uuid.UUID, from, to ApplicationStatus) (*JobApplication, error)
}

func (su *SupabaseRepo) ListOpenJobs(ctx context.Context, offset, limit int) ([]*JobPosting, int, error) {
	q := su.supabaseClient.From(JobPostingsTable).
		Select("*", "exact", false).
		Eq("status", string(JobOpen))
	rows, total, err := listPage[JobPosting](q, "created_at", offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return rows, total, nil
}

func (su *SupabaseRepo) GetJob(ctx context.Context, id uuid.UUID) (*JobPosting, error) {
	raw, _, err := su.supabaseClient.From(JobPostingsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return decodeOne[JobPosting](raw, "job")
}

func (su *SupabaseRepo) CreateJob(ctx context.Context, job *JobPosting) (*JobPosting, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	raw, _, err := su.supabaseClient.From(JobPostingsTable).
		Insert(job, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return decodeOne[JobPosting](raw, "job")
}

func (su *SupabaseRepo) CreateApplication(ctx context.Context, app *JobApplication) (*JobApplication, error) {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	raw, _, err := su.supabaseClient.From(JobApplicationsTable).
		Insert(app, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return decodeOne[JobApplication](raw, "application")
}

func (su *SupabaseRepo) GetApplication(ctx context.Context, id uuid.UUID) (*JobApplication, error) {
	raw, _, err := su.supabaseClient.From(JobApplicationsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return decodeOne[JobApplication](raw, "application")
}

func (su *SupabaseRepo) ListApplications(ctx context.Context, jobID uuid.UUID, offset, limit int) ([]*JobApplication, int, error) {
	q := su.supabaseClient.From(JobApplicationsTable).
		Select("*", "exact", false).
		Eq("job_id", jobID.String())
	rows, total, err := listPage[JobApplication](q, "created_at", offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	return rows, total, nil
}

func (su *SupabaseRepo) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, from, to ApplicationStatus) (*JobApplication, error) {
	raw, _, err := su.supabaseClient.From(JobApplicationsTable).
		Update(map[string]interface{}{"status": to}, "representation", "").
		Eq("id", id.String()).
		Eq("status", string(from)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}
	rows, err := decodeRows[JobApplication](raw)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("application is no longer %s: %w", from, ErrConflict)
	}
	return &rows[0], nil
}
