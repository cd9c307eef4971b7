// Package web serves the upload form, the analysis dashboard and the JSON
// analysis endpoint.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pandu874/webloganalyzer/internal/core"
	"github.com/pandu874/webloganalyzer/internal/observability"
	"github.com/pandu874/webloganalyzer/pkg/models"
)

//go:embed templates/*.tmpl templates/style.css
var templatesFS embed.FS

// UploadField is the multipart form field carrying the log file.
const UploadField = "logfile"

// multipartMemory is the part of a multipart form kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// multipartOverhead is the room left above the upload limit for multipart
// boundaries and part headers.
const multipartOverhead = 64 << 10

// errNoFile reports an upload request without a usable file.
var errNoFile = errors.New("no file provided in field " + UploadField)

// ShutdownTimeout bounds how long in-flight requests may run after the
// server is asked to stop.
const ShutdownTimeout = 5 * time.Second

// Options holds the collaborators of a Server. Alerts and Notifier may be nil.
// MaxUploadBytes caps the request body before it is parsed; zero or less
// leaves it uncapped.
type Options struct {
	Analyzer       core.LogAnalyzer
	Uploads        core.UploadStore
	Logger         *log.Logger
	Alerts         observability.AlertEngine
	Notifier       observability.Notifier
	MaxUploadBytes int64
}

// Server renders the upload and dashboard pages.
type Server struct {
	templates *template.Template
	css       template.CSS
	analyzer  core.LogAnalyzer
	uploads   core.UploadStore
	logger    *log.Logger
	alerts    observability.AlertEngine
	notifier  observability.Notifier
	maxBody   int64
}

// IndexView is the data of the upload page.
type IndexView struct {
	CSS template.CSS
}

// DashboardView is the data of the results page.
type DashboardView struct {
	CSS            template.CSS
	Filename       string
	TotalRequests  int
	StatusCounts   []models.StatusCount
	MalformedLines []models.MalformedLine
	Alerts         []observability.Alert
}

// NewServer parses the embedded templates and returns a Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Analyzer == nil || opts.Uploads == nil {
		return nil, errors.New("web server requires an analyzer and an upload store")
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	rawCSS, err := templatesFS.ReadFile("templates/style.css")
	if err != nil {
		return nil, fmt.Errorf("reading stylesheet: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		templates: tmpl,
		css:       template.CSS(rawCSS),
		analyzer:  opts.Analyzer,
		uploads:   opts.Uploads,
		logger:    logger,
		alerts:    opts.Alerts,
		notifier:  opts.Notifier,
		maxBody:   bodyLimit(opts.MaxUploadBytes),
	}, nil
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.HandleAnalyze)
	mux.HandleFunc("/api/analyze", s.HandleAPIAnalyze)
	mux.HandleFunc("/", s.HandleIndex)
	return mux
}

// HandleIndex renders the upload form.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.render(w, "index", IndexView{CSS: s.css})
}

// HandleAnalyze saves the uploaded log, analyzes it and renders the
// dashboard. A request without a file is sent back to the upload form.
func (s *Server) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	file, header, err := s.formFile(w, r)
	switch {
	case errors.Is(err, errNoFile):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	defer file.Close()

	name, result, status, err := s.process(header.Filename, file)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	view := DashboardView{
		CSS:            s.css,
		Filename:       name,
		TotalRequests:  result.TotalRequests,
		StatusCounts:   result.SortedStatusCounts(),
		MalformedLines: result.MalformedLines,
		Alerts:         s.checkAlerts(r.Context(), name, result),
	}
	s.render(w, "dashboard", view)
}

// HandleAPIAnalyze is HandleAnalyze answering with a JSON report.
func (s *Server) HandleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	file, header, err := s.formFile(w, r)
	switch {
	case errors.Is(err, errNoFile):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	defer file.Close()

	name, result, status, err := s.process(header.Filename, file)
	if err != nil {
		writeJSONError(w, status, err.Error())
		return
	}
	s.checkAlerts(r.Context(), name, result)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result.Report(name))
}

// formFile returns the uploaded log file. It fails with errNoFile when the
// request has no file or its filename is blank, and with
// core.ErrUploadTooLarge when the body exceeds the upload limit. The body is
// capped before parsing so an oversized upload is never spooled to disk.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if s.maxBody > 0 {
		if r.ContentLength > s.maxBody {
			s.logger.Warn("upload rejected", "bytes", r.ContentLength, "limit", s.maxBody)
			return nil, nil, core.ErrUploadTooLarge
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Warn("upload rejected", "limit", tooLarge.Limit)
			return nil, nil, core.ErrUploadTooLarge
		}
		s.logger.Warn("unreadable upload request", "error", err)
		return nil, nil, errNoFile
	}
	file, header, err := r.FormFile(UploadField)
	if err != nil {
		s.logger.Warn("no file provided in upload request")
		return nil, nil, errNoFile
	}
	if isBlank(header.Filename) {
		file.Close()
		s.logger.Warn("no file provided in upload request")
		return nil, nil, errNoFile
	}
	return file, header, nil
}

func bodyLimit(maxUpload int64) int64 {
	if maxUpload <= 0 {
		return 0
	}
	return maxUpload + multipartOverhead
}

// process stores the upload and runs the analysis. On failure it returns
// the HTTP status matching the error.
func (s *Server) process(filename string, body io.Reader) (string, *models.AnalysisResult, int, error) {
	path, err := s.uploads.Save(filename, body)
	switch {
	case errors.Is(err, core.ErrInvalidFilename):
		return "", nil, http.StatusBadRequest, err
	case errors.Is(err, core.ErrUploadTooLarge):
		return "", nil, http.StatusRequestEntityTooLarge, err
	case err != nil:
		s.logger.Error("saving upload failed", "file", filename, "error", err)
		return "", nil, http.StatusInternalServerError, errors.New("could not save upload")
	}
	s.logger.Info("saved upload", "path", path)

	result, err := s.analyzer.Analyze(path)
	if err != nil {
		var accessErr *core.FileAccessError
		if errors.As(err, &accessErr) {
			return "", nil, http.StatusInternalServerError, errors.New("could not read uploaded log")
		}
		return "", nil, http.StatusInternalServerError, err
	}
	return baseName(path), result, http.StatusOK, nil
}

// checkAlerts evaluates the alert thresholds against one analysis and
// forwards triggered alerts to the notifier.
func (s *Server) checkAlerts(ctx context.Context, name string, result *models.AnalysisResult) []observability.Alert {
	if s.alerts == nil {
		return nil
	}
	alerts := s.alerts.EvaluateAnalysis(observability.AnalysisSummary{
		File:          name,
		TotalRequests: result.TotalRequests,
		Malformed:     result.MalformedCount(),
		StatusCounts:  result.StatusCounts,
	})
	for _, a := range alerts {
		s.logger.Warn("alert triggered", "condition", a.Condition, "severity", a.Severity, "message", a.Message)
	}
	if s.notifier != nil && len(alerts) > 0 {
		if err := s.notifier.Notify(ctx, name, alerts); err != nil {
			s.logger.Warn("sending alert notification failed", "error", err)
		}
	}
	return alerts
}

// render executes a template into a buffer first so a failing template
// never leaves a partial page behind a 200.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("rendering template failed", "template", name, "error", err)
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func baseName(path string) string {
	return filepath.Base(path)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("listening", "addr", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}
