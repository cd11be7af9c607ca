package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edulink/tutoring-api/internal/models"
	appErrors "github.com/edulink/tutoring-api/pkg/errors"
	"github.com/edulink/tutoring-api/pkg/export"
	"github.com/edulink/tutoring-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultURL string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type reportRequestSource interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, int, error)
}

type reportCourseSource interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
}

type exportStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string) (jobID, relPath string, expiresAt time.Time, err error)
}

// CreateReportRequest is the payload for queueing a report export.
type CreateReportRequest struct {
	Type   models.ReportType   `json:"type" validate:"required,oneof=requests courses"`
	Format models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Status string              `json:"status,omitempty"`
}

// ReportJobResponse summarizes a queued or completed job for clients.
type ReportJobResponse struct {
	ID          string              `json:"id"`
	Type        models.ReportType   `json:"type"`
	Status      models.ReportStatus `json:"status"`
	DownloadURL *string             `json:"download_url,omitempty"`
	Error       *string             `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}

// ReportDownload aggregates an open file handle with response metadata.
type ReportDownload struct {
	File     *os.File
	Filename string
	Format   models.ReportFormat
}

// ReportService queues report exports, renders them in the background and
// serves the results through signed download links.
type ReportService struct {
	repo     reportJobStore
	requests reportRequestSource
	courses  reportCourseSource
	queue    jobDispatcher
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	store    exportStore
	signer   downloadSigner
	validate *validator.Validate
	logger   *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(
	repo reportJobStore,
	requests reportRequestSource,
	courses reportCourseSource,
	queue jobDispatcher,
	store exportStore,
	signer downloadSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:     repo,
		requests: requests,
		courses:  courses,
		queue:    queue,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		store:    store,
		signer:   signer,
		validate: validate,
		logger:   logger,
	}
}

// Create validates the request, persists the job and enqueues processing.
// Only back-office roles may export data.
func (s *ReportService) Create(ctx context.Context, req CreateReportRequest, actorID string, role models.UserRole) (*ReportJobResponse, error) {
	if role != models.RoleCoordinator && role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	if req.Status != "" && req.Type == models.ReportTypeRequests {
		if !models.RequestStatus(req.Status).Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown request status filter")
		}
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{Status: req.Status, Format: req.Format},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job"); markErr != nil {
			s.logger.Error("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return toReportResponse(job), nil
}

// Get returns job metadata. Coordinators and admins can read any job.
func (s *ReportService) Get(ctx context.Context, id string, role models.UserRole) (*ReportJobResponse, error) {
	if role != models.RoleCoordinator && role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return toReportResponse(job), nil
}

// Process renders a queued job and records the signed result URL. It is the
// queue handler and runs off the request path.
func (s *ReportService) Process(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	if record.Status == models.ReportStatusFinished || record.Status == models.ReportStatusFailed {
		return nil
	}
	if err := s.repo.MarkProcessing(ctx, record.ID); err != nil {
		return err
	}

	dataset, title, err := s.buildDataset(ctx, record)
	if err != nil {
		s.fail(ctx, record.ID, err)
		return err
	}

	var payload []byte
	switch record.Params.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.fail(ctx, record.ID, err)
		return err
	}

	filename := fmt.Sprintf("%s/%s.%s", record.Type, record.ID, record.Params.Format)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		s.fail(ctx, record.ID, err)
		return err
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		s.fail(ctx, record.ID, err)
		return err
	}
	resultURL := fmt.Sprintf("/api/v1/reports/download?token=%s", token)
	if err := s.repo.MarkFinished(ctx, record.ID, resultURL); err != nil {
		return err
	}
	s.logger.Info("report job finished", zap.String("job_id", record.ID), zap.String("type", string(record.Type)))
	return nil
}

// Download validates a signed token and opens the result file.
func (s *ReportService) Download(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "report is not ready for download")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return &ReportDownload{
		File:     file,
		Filename: fmt.Sprintf("%s-%s.%s", job.Type, job.ID, job.Params.Format),
		Format:   job.Params.Format,
	}, nil
}

// reportPageSize is the largest page the repositories serve. Exports walk
// pages until a short page signals the end.
const reportPageSize = 100

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeRequests:
		filter := models.RequestFilter{Page: 1, PageSize: reportPageSize}
		if job.Params.Status != "" {
			filter.Statuses = []models.RequestStatus{models.RequestStatus(job.Params.Status)}
		}
		var all []models.CourseRequest
		for {
			rows, _, err := s.requests.List(ctx, filter)
			if err != nil {
				return export.Dataset{}, "", fmt.Errorf("list requests page %d: %w", filter.Page, err)
			}
			all = append(all, rows...)
			if len(rows) < reportPageSize {
				break
			}
			filter.Page++
		}
		return requestsDataset(all), "Course Requests", nil
	case models.ReportTypeCourses:
		filter := models.CourseFilter{Page: 1, PageSize: reportPageSize}
		var all []models.Course
		for {
			rows, _, err := s.courses.List(ctx, filter)
			if err != nil {
				return export.Dataset{}, "", fmt.Errorf("list courses page %d: %w", filter.Page, err)
			}
			all = append(all, rows...)
			if len(rows) < reportPageSize {
				break
			}
			filter.Page++
		}
		return coursesDataset(all), "Courses", nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unknown report type %q", job.Type)
	}
}

func (s *ReportService) fail(ctx context.Context, jobID string, cause error) {
	if err := s.repo.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		s.logger.Error("failed to mark report job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func requestsDataset(rows []models.CourseRequest) export.Dataset {
	ds := export.Dataset{
		Headers: []string{"ID", "Parent", "Subjects", "Level", "Type", "Time Slot", "Status", "Applicants", "Assigned Teacher", "Created At"},
	}
	for _, r := range rows {
		assigned := ""
		if r.AssignedTeacherName != nil {
			assigned = *r.AssignedTeacherName
		}
		ds.Rows = append(ds.Rows, []string{
			r.ID,
			r.ParentName,
			subjectNames(r.Subjects),
			r.Level,
			string(r.Type),
			string(r.TimeSlot),
			string(r.Status),
			fmt.Sprintf("%d", len(r.AppliedTeachers)),
			assigned,
			r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return ds
}

func coursesDataset(rows []models.Course) export.Dataset {
	ds := export.Dataset{
		Headers: []string{"ID", "Teacher", "Student", "Subjects", "Starts", "Ends", "Status", "Rating"},
	}
	for _, c := range rows {
		rating := ""
		if c.Rating != nil {
			rating = fmt.Sprintf("%d", *c.Rating)
		}
		ds.Rows = append(ds.Rows, []string{
			c.ID,
			c.TeacherName,
			c.StudentID,
			subjectNames(c.Subjects),
			c.ProposedDateTime.UTC().Format(time.RFC3339),
			c.EndDateTime.UTC().Format(time.RFC3339),
			string(c.Status),
			rating,
		})
	}
	return ds
}

func subjectNames(subjects models.SubjectList) string {
	names := make([]byte, 0, 32)
	for i, subject := range subjects {
		if i > 0 {
			names = append(names, ';', ' ')
		}
		names = append(names, subject.Name...)
	}
	return string(names)
}

func toReportResponse(job *models.ReportJob) *ReportJobResponse {
	return &ReportJobResponse{
		ID:          job.ID,
		Type:        job.Type,
		Status:      job.Status,
		DownloadURL: job.ResultURL,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		FinishedAt:  job.FinishedAt,
	}
}
