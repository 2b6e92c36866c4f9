// Package analysistest provides a scriptable stand-in for the financial
// analysis service, used by tests and by cmd/fakeanalysis for local runs.
package analysistest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Step is one scripted answer of the job status endpoint. A non-zero
// HTTPStatus makes the call fail with Detail instead.
type Step struct {
	Status   string
	Progress int
	Message  string
	Result   map[string]any
	Error    string

	HTTPStatus int
	Detail     string
}

// Upload records what a client sent to the upload endpoint
type Upload struct {
	JobID       string
	CompanyID   string
	CompanyName string
	Files       map[string][]byte
	Headers     http.Header
}

// Service is the in-memory fake. Jobs without a script advance through
// DefaultSteps.
type Service struct {
	mu        sync.Mutex
	scripts   map[string][]Step
	calls     map[string]int
	created   map[string]time.Time
	analyses  map[string]any
	uploads   []Upload
	nextJobID string
	failure   *Step
	sample    any
}

// New creates an empty fake service
func New() *Service {
	return &Service{
		scripts:  make(map[string][]Step),
		calls:    make(map[string]int),
		created:  make(map[string]time.Time),
		analyses: make(map[string]any),
	}
}

// DefaultSteps is the queued, processing, completed progression used for
// unscripted jobs.
func DefaultSteps(analysisID string) []Step {
	return []Step{
		{Status: "queued", Message: "Job queued"},
		{Status: "processing", Progress: 50, Message: "Extracting statements"},
		{Status: "completed", Progress: 100, Message: "Analysis complete", Result: map[string]any{
			"analysis_id": analysisID,
			"summary":     map[string]any{"documents_processed": 1},
		}},
	}
}

// Script sets the status answers for jobID. The last step repeats.
func (s *Service) Script(jobID string, steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[jobID] = steps
	s.calls[jobID] = 0
}

// NextJobID fixes the identifier handed out by the next upload
func (s *Service) NextJobID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJobID = id
}

// FailUploads makes the upload endpoint answer with step's HTTPStatus and
// Detail. Pass nil to accept uploads again.
func (s *Service) FailUploads(step *Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = step
}

// SetAnalysis registers the document returned for analysisID. Strings are
// served verbatim, anything else is encoded as JSON.
func (s *Service) SetAnalysis(analysisID string, doc any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[analysisID] = doc
}

// UseSample makes every unscripted job complete with an analysis equal to doc
func (s *Service) UseSample(doc any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample = doc
}

// StatusCalls returns how many times the status of jobID was requested
func (s *Service) StatusCalls(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[jobID]
}

// Uploads returns a copy of the recorded uploads
func (s *Service) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Upload, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// Handler exposes the fake over HTTP
func (s *Service) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = 32 << 20

	api := router.Group("/api/analysis")
	{
		api.POST("/upload", s.upload)
		api.GET("/job/:id", s.status)
		api.GET("/:id", s.analysis)
	}

	return router
}

// Start serves the fake on a random local port until the returned server is closed
func (s *Service) Start() *httptest.Server {
	return httptest.NewServer(s.Handler())
}

func (s *Service) upload(c *gin.Context) {
	s.mu.Lock()
	failure := s.failure
	s.mu.Unlock()
	if failure != nil {
		c.JSON(failure.HTTPStatus, gin.H{"detail": failure.Detail})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid multipart form"})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No files provided"})
		return
	}

	companyID := c.PostForm("company_id")
	if companyID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{
			"loc":  []string{"body", "company_id"},
			"msg":  "field required",
			"type": "value_error.missing",
		}}})
		return
	}

	files := make(map[string][]byte, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "unreadable file " + fh.Filename})
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "unreadable file " + fh.Filename})
			return
		}
		files[fh.Filename] = data
	}

	s.mu.Lock()
	jobID := s.nextJobID
	s.nextJobID = ""
	if jobID == "" {
		jobID = uuid.NewString()
	}
	if _, ok := s.scripts[jobID]; !ok {
		analysisID := uuid.NewString()
		s.scripts[jobID] = DefaultSteps(analysisID)
		if s.sample != nil {
			s.analyses[analysisID] = s.sample
		}
	}
	s.created[jobID] = time.Now().UTC()
	s.uploads = append(s.uploads, Upload{
		JobID:       jobID,
		CompanyID:   companyID,
		CompanyName: c.PostForm("company_name"),
		Files:       files,
		Headers:     c.Request.Header.Clone(),
	})
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"job_id":      jobID,
		"status":      "queued",
		"message":     "Analysis job queued",
		"files_count": len(files),
	})
}

func (s *Service) status(c *gin.Context) {
	jobID := c.Param("id")

	s.mu.Lock()
	steps, ok := s.scripts[jobID]
	n := s.calls[jobID]
	s.calls[jobID] = n + 1
	created, seen := s.created[jobID]
	if !seen {
		created = time.Now().UTC()
		s.created[jobID] = created
	}
	s.mu.Unlock()

	if !ok || len(steps) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}

	if n >= len(steps) {
		n = len(steps) - 1
	}
	step := steps[n]

	if step.HTTPStatus != 0 {
		c.JSON(step.HTTPStatus, gin.H{"detail": step.Detail})
		return
	}

	body := gin.H{
		"job_id":     jobID,
		"status":     step.Status,
		"progress":   step.Progress,
		"message":    step.Message,
		"created_at": created.Format("2006-01-02T15:04:05.000000"),
	}
	if step.Status == "completed" || step.Status == "failed" {
		body["completed_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	if step.Result != nil {
		body["result"] = step.Result
	}
	if step.Error != "" {
		body["error"] = step.Error
	}

	c.JSON(http.StatusOK, body)
}

func (s *Service) analysis(c *gin.Context) {
	s.mu.Lock()
	doc, ok := s.analyses[c.Param("id")]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Analysis not found"})
		return
	}

	if raw, isRaw := doc.(string); isRaw {
		c.Data(http.StatusOK, "application/json", []byte(raw))
		return
	}
	c.JSON(http.StatusOK, doc)
}
