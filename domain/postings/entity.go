package postings

import (
	"time"

	"github.com/uptrace/bun"
)

// Job is an open position candidates can apply to
type Job struct {
	bun.BaseModel `bun:"table:kb.jobs,alias:j"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description"`
	Company     string    `bun:"company" json:"company"`
	Location    string    `bun:"location" json:"location"`
	SalaryMin   *float64  `bun:"salary_min" json:"salaryMin,omitempty"`
	SalaryMax   *float64  `bun:"salary_max" json:"salaryMax,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// CreateJobRequest is the body of POST /api/jobs
type CreateJobRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	SalaryMin   *float64 `json:"salaryMin"`
	SalaryMax   *float64 `json:"salaryMax"`
}

// ListParams pages the job list; a zero Limit returns every job
type ListParams struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Data  []Job `json:"data"`
	Total int   `json:"total"`
}
