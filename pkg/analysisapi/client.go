package analysisapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/google/uuid"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "ca-analysis-client/1.0"

	maxErrorBody    = 4096
	maxAnalysisBody = 32 << 20
)

// NewClient instantiates an analysis service client
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("analysisapi: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("analysisapi: parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:     baseURL,
		credentials: cfg.Credentials,
		httpClient:  httpClient,
		userAgent:   userAgent,
	}, nil
}

// Submit uploads documents for analysis and returns the queued job
func (c *Client) Submit(ctx context.Context, sub Submission) (SubmitResponse, error) {
	if c == nil {
		return SubmitResponse{}, fmt.Errorf("analysisapi: client is nil")
	}
	if len(sub.Documents) == 0 {
		return SubmitResponse{}, ErrNoDocuments
	}
	if strings.TrimSpace(sub.CompanyID) == "" {
		return SubmitResponse{}, ErrCompanyIDRequired
	}

	u, err := c.endpoint("api", "analysis", "upload")
	if err != nil {
		return SubmitResponse{}, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		_ = pw.CloseWithError(writeSubmission(mw, sub))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, pr)
	if err != nil {
		_ = pr.Close()
		return SubmitResponse{}, fmt.Errorf("analysisapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out SubmitResponse
	if err := c.decode(req, "submit response", &out); err != nil {
		_ = pr.Close()
		return SubmitResponse{}, err
	}

	return out, nil
}

// GetStatus fetches a fresh snapshot of a job. Nothing is cached.
func (c *Client) GetStatus(ctx context.Context, jobID string) (Job, error) {
	if c == nil {
		return Job{}, fmt.Errorf("analysisapi: client is nil")
	}
	if strings.TrimSpace(jobID) == "" {
		return Job{}, ErrJobIDRequired
	}

	u, err := c.endpoint("api", "analysis", "job", jobID)
	if err != nil {
		return Job{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Job{}, fmt.Errorf("analysisapi: build request: %w", err)
	}

	var payload jobStatusResponse
	if err := c.decode(req, "job status", &payload); err != nil {
		return Job{}, err
	}

	return mapJob(payload), nil
}

// GetAnalysis loads the full analysis document produced by a completed job
func (c *Client) GetAnalysis(ctx context.Context, analysisID string) (Analysis, error) {
	if c == nil {
		return nil, fmt.Errorf("analysisapi: client is nil")
	}
	if strings.TrimSpace(analysisID) == "" {
		return nil, ErrAnalysisIDRequired
	}

	u, err := c.endpoint("api", "analysis", analysisID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("analysisapi: build request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAnalysisBody))
	if err != nil {
		return nil, fmt.Errorf("analysisapi: read analysis: %w", err)
	}

	return decodeAnalysis(raw)
}

func (c *Client) endpoint(segments ...string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("analysisapi: parse base url: %w", err)
	}

	escaped := make([]string, 0, len(segments)+2)
	escaped = append(escaped, "/", u.EscapedPath())
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	u.RawPath = path.Join(escaped...)
	u.Path, err = url.PathUnescape(u.RawPath)
	if err != nil {
		return "", fmt.Errorf("analysisapi: build path: %w", err)
	}

	return u.String(), nil
}

// decode sends req and decodes a 2xx JSON body into out
func (c *Client) decode(req *http.Request, op string, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// send executes req and turns non-2xx answers into *APIError. The caller
// owns the body of a successful response.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	if c.credentials != nil {
		token, err := c.credentials.Token(req.Context())
		if err != nil {
			return nil, fmt.Errorf("analysisapi: resolve credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysisapi: request failed: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	return resp, nil
}

func writeSubmission(mw *multipart.Writer, sub Submission) error {
	if err := mw.WriteField("company_id", sub.CompanyID); err != nil {
		return err
	}
	if err := mw.WriteField("company_name", sub.CompanyName); err != nil {
		return err
	}

	for i, doc := range sub.Documents {
		if doc.Reader == nil {
			return fmt.Errorf("analysisapi: document %d has no content", i)
		}
		name := filepath.Base(doc.Name)
		if doc.Name == "" {
			name = fmt.Sprintf("document-%d", i+1)
		}

		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, doc.Reader); err != nil {
			return fmt.Errorf("analysisapi: copy %s: %w", name, err)
		}
	}

	return mw.Close()
}

// errorDetail extracts the service "detail" field. Validation errors carry a
// structured detail, which is returned as compact JSON.
func errorDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return string(body)
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		return detail
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err != nil {
		return string(payload.Detail)
	}
	return compact.String()
}

func mapJob(payload jobStatusResponse) Job {
	job := Job{
		ID:        payload.JobID,
		Status:    payload.Status,
		Progress:  payload.Progress,
		Message:   payload.Message,
		CreatedAt: parseTimestamp(payload.CreatedAt),
		Error:     payload.Error,
	}

	if payload.CompletedAt != "" {
		if ts := parseTimestamp(payload.CompletedAt); !ts.IsZero() {
			job.CompletedAt = &ts
		}
	}

	if len(payload.Result) > 0 && !bytes.Equal(bytes.TrimSpace(payload.Result), []byte("null")) {
		res := decodeResult(payload.Result)
		job.Result = &res
	}

	return job
}

// decodeResult never fails: the result is opaque apart from analysis_id,
// and a shape it does not expect must not hide the job status.
func decodeResult(raw json.RawMessage) JobResult {
	var res JobResult
	if err := json.Unmarshal(raw, &res); err != nil {
		res = JobResult{}
		var loose map[string]any
		if json.Unmarshal(raw, &loose) == nil {
			res.AnalysisID, _ = loose["analysis_id"].(string)
			res.Summary, _ = loose["summary"].(map[string]any)
		}
	}
	res.Raw = raw
	return res
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts RFC 3339 and zone-less ISO timestamps, the latter as UTC.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// decodeAnalysis decodes the document, repairing it once when the
// generator produced malformed JSON.
func decodeAnalysis(raw []byte) (Analysis, error) {
	var doc Analysis
	err := json.Unmarshal(raw, &doc)
	if err == nil {
		return doc, nil
	}

	repaired, repairErr := jsonrepair.RepairJSON(string(raw))
	if repairErr != nil {
		return nil, &DecodeError{Op: "analysis", Err: err}
	}

	doc = nil
	if err2 := json.Unmarshal([]byte(repaired), &doc); err2 != nil || doc == nil {
		return nil, &DecodeError{Op: "analysis", Err: err}
	}

	return doc, nil
}

// Documents is a set of opened local files ready for submission
type Documents []Document

// OpenDocuments opens every path for reading. On failure the files opened
// so far are closed.
func OpenDocuments(paths ...string) (Documents, error) {
	docs := make(Documents, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			_ = docs.Close()
			return nil, fmt.Errorf("analysisapi: open %s: %w", p, err)
		}
		docs = append(docs, Document{Name: filepath.Base(p), Reader: f})
	}
	return docs, nil
}

// Close closes every document reader that is an io.Closer
func (d Documents) Close() error {
	var errs []error
	for _, doc := range d {
		if c, ok := doc.Reader.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
