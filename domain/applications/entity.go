package applications

import (
	"io"
	"time"

	"github.com/uptrace/bun"
)

// Application is a candidate's application to a job. CVKey is set once a CV
// has been stored.
type Application struct {
	bun.BaseModel `bun:"table:kb.job_applications,alias:ja"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	JobID          int64     `bun:"job_id,notnull" json:"jobId"`
	CandidateName  string    `bun:"candidate_name,notnull" json:"candidateName"`
	CandidateEmail string    `bun:"candidate_email,notnull" json:"candidateEmail"`
	CVKey          *string   `bun:"cv_key" json:"cvKey,omitempty"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// HasCV reports whether a CV has been uploaded
func (a *Application) HasCV() bool {
	return a.CVKey != nil && *a.CVKey != ""
}

// SubmitRequest is the body of POST /api/jobs/:id/job-applications
type SubmitRequest struct {
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail"`
}

// UploadRequest carries one uploaded CV
type UploadRequest struct {
	ApplicationID int64
	FileName      string
	Content       []byte
	ContentType   string
}

// CV is a stored CV ready to stream. Callers must close Body.
type CV struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	FileName    string
}
