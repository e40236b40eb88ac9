// Package web serves the local dashboard: a snapshot of the latest batch
// run plus endpoints to kick off and watch a new one. Bound to localhost
// only.
package web

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/mailtriage/mailtriage/internal/analysis"
	"github.com/mailtriage/mailtriage/internal/store"
	"github.com/mailtriage/mailtriage/internal/triage"
)

//go:embed static/*
var staticFS embed.FS

//go:embed templates/*
var templatesFS embed.FS

const (
	defaultRateLimit  = 30
	defaultRateWindow = time.Minute
	recentLimit       = 500
)

// RunnerFactory builds a fresh batch runner per job. Mailbox connections
// are opened lazily so the dashboard works without credentials until a
// run is requested.
type RunnerFactory func(ctx context.Context) (*triage.Runner, error)

type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) filterRecent(times []time.Time, windowStart time.Time) []time.Time {
	n := 0
	for _, t := range times {
		if t.After(windowStart) {
			times[n] = t
			n++
		}
	}
	return times[:n]
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.filterRecent(rl.requests[key], now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}
	rl.requests[key] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		windowStart := time.Now().Add(-rl.window)
		for key, times := range rl.requests {
			recent := rl.filterRecent(times, windowStart)
			if len(recent) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = recent
			}
		}
		rl.mu.Unlock()
	}
}

type Server struct {
	store       *store.Store
	newRunner   RunnerFactory
	templates   map[string]*template.Template
	httpServer  *http.Server
	port        int
	csrfKey     []byte
	rateLimiter *RateLimiter
	jobManager  *JobManager
	logger      *log.Logger
}

func NewServer(port int, st *store.Store, newRunner RunnerFactory, logger *log.Logger) (*Server, error) {
	csrfKey := make([]byte, 32)
	if _, err := rand.Read(csrfKey); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}

	s := &Server{
		store:       st,
		newRunner:   newRunner,
		port:        port,
		csrfKey:     csrfKey,
		rateLimiter: NewRateLimiter(defaultRateLimit, defaultRateWindow),
		jobManager:  NewJobManager(),
		logger:      logger.With("component", "web"),
	}

	tmpl, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tmpl
	return s, nil
}

// parseTemplates loads the page templates, each paired with the layout.
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 3:04 PM")
		},
		"levelClass": func(level analysis.ImportanceLevel) string {
			switch level {
			case analysis.VeryImportant:
				return "level-very-important"
			case analysis.Important:
				return "level-important"
			case analysis.Spam:
				return "level-spam"
			default:
				return "level-unimportant"
			}
		},
		"join": strings.Join,
	}

	layoutContent, err := templatesFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout template: %w", err)
	}

	templates := make(map[string]*template.Template)
	err = fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == "templates/layout.html" || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := path[len("templates/"):]
		pageTmpl := template.New(name).Funcs(funcs)
		if _, err = pageTmpl.Parse(string(layoutContent)); err != nil {
			return fmt.Errorf("failed to parse layout for %s: %w", name, err)
		}
		if _, err = pageTmpl.Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		templates[name] = pageTmpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// Start starts the web server and opens the browser
func (s *Server) Start() error {
	router := s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		time.Sleep(500 * time.Millisecond)
		openBrowser(fmt.Sprintf("http://localhost:%d", s.port))
	}()

	fmt.Printf("Starting mailtriage web UI at http://localhost:%d\n", s.port)
	fmt.Println("Press Ctrl+C to stop")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRouter configures all routes
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)

	// CSRF protection - secure for localhost only
	csrfMiddleware := csrf.Protect(
		s.csrfKey,
		csrf.Secure(false), // Allow HTTP for localhost
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.TrustedOrigins([]string{"localhost", "127.0.0.1", fmt.Sprintf("localhost:%d", s.port), fmt.Sprintf("127.0.0.1:%d", s.port)}),
	)
	r.Use(csrfMiddleware)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/", s.handleDashboard)

	r.Route("/api", func(r chi.Router) {
		r.Post("/process", s.handleAPIProcess)
		r.Get("/job/active", s.handleAPIJobActive)
		r.Get("/job/{jobID}/status", s.handleAPIJobStatus)
		r.Post("/job/{jobID}/cancel", s.handleAPIJobCancel)
		r.Get("/emails", s.handleAPIEmails)
		r.Get("/email/{messageID}", s.handleAPIEmail)
	})

	return r
}

// securityHeaders adds security headers to all responses
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// 'unsafe-inline' needed for the small inline scripts on the dashboard
		csp := "default-src 'self'; " +
			"script-src 'self' 'unsafe-inline'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"connect-src 'self'; " +
			"frame-ancestors 'none'; " +
			"form-action 'self'; " +
			"base-uri 'self'"
		w.Header().Set("Content-Security-Policy", csp)

		// Email content should never be cached by the browser
		if !strings.HasPrefix(r.URL.Path, "/static/") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

		next.ServeHTTP(w, r)
	})
}

// openBrowser opens the default browser to the specified URL
func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		return
	}

	exec.Command(cmd, args...).Start()
}

// Handler implementations

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	records, err := s.sortedRecords("")
	if err != nil {
		http.Error(w, "Failed to load records: "+err.Error(), http.StatusInternalServerError)
		return
	}

	stats, err := s.store.GetStats()
	if err != nil {
		http.Error(w, "Failed to load stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Title":         "Inbox Triage",
		"Records":       records,
		"Total":         stats.Total,
		"VeryImportant": stats.ByLevel[analysis.VeryImportant],
		"Important":     stats.ByLevel[analysis.Important],
		"Unimportant":   stats.ByLevel[analysis.Unimportant],
		"Spam":          stats.ByLevel[analysis.Spam],
		"Heuristic":     stats.Heuristic,
	}
	s.renderWithCSRF(w, r, "dashboard.html", data)
}

func (s *Server) handleAPIProcess(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.rateLimiter.Allow("process") {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "Rate limit exceeded. Please wait before starting another run."})
		return
	}

	if activeJob := s.jobManager.GetActive(); activeJob != nil {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  "A run is already in progress",
			"job_id": activeJob.ID,
		})
		return
	}

	job := s.jobManager.Create()
	go s.processJob(job)

	json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID})
}

// processJob runs one batch in the background, feeding progress into the
// job so the dashboard can poll it.
func (s *Server) processJob(job *Job) {
	runner, err := s.newRunner(job.Context())
	if err != nil {
		s.logger.Error("failed to start run", "err", err)
		job.StopWithError(err.Error())
		return
	}
	defer runner.Close()

	summary, err := runner.Run(job.Context(), func(done, total int, subject string) {
		job.Update(done, total, subject)
	})
	if err != nil {
		if job.IsCancelled() {
			processed := 0
			if summary != nil {
				processed = summary.Processed
			}
			s.logger.Info("run cancelled", "processed", processed)
			return
		}
		s.logger.Error("run failed", "err", err)
		job.StopWithError(err.Error())
		return
	}

	s.logger.Info("run completed", "processed", summary.Processed, "fallback", summary.Fallback)
	job.Complete(summary.Fallback)
	s.jobManager.Cleanup(time.Hour)
}

// handleAPIJobActive returns the currently running job (if any)
func (s *Server) handleAPIJobActive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	job := s.jobManager.GetActive()
	if job == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{"job": nil})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"job": job.ToJSON()})
}

// handleAPIJobStatus returns the status of a specific job
func (s *Server) handleAPIJobStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	jobID := chi.URLParam(r, "jobID")
	job := s.jobManager.Get(jobID)

	if job == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "job not found"})
		return
	}

	json.NewEncoder(w).Encode(job.ToJSON())
}

// handleAPIJobCancel cancels a running job
func (s *Server) handleAPIJobCancel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	jobID := chi.URLParam(r, "jobID")
	job := s.jobManager.Get(jobID)

	if job == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "job not found"})
		return
	}

	job.Cancel()
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

// handleAPIEmails returns stored verdicts, most severe first. An optional
// ?level= filter narrows to one importance level.
func (s *Server) handleAPIEmails(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	level := analysis.ImportanceLevel(r.URL.Query().Get("level"))
	if level != "" && !level.Valid() {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown importance level"})
		return
	}

	records, err := s.sortedRecords(level)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"emails": records,
		"count":  len(records),
	})
}

// handleAPIEmail returns the full stored verdict for one message
func (s *Server) handleAPIEmail(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rec, err := s.store.Get(chi.URLParam(r, "messageID"))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "email not found"})
		return
	}

	json.NewEncoder(w).Encode(rec)
}

// sortedRecords loads stored verdicts ordered by severity, then recency.
func (s *Server) sortedRecords(level analysis.ImportanceLevel) ([]analysis.Record, error) {
	var records []analysis.Record
	var err error
	if level != "" {
		records, err = s.store.ByLevel(level, recentLimit)
	} else {
		records, err = s.store.Recent(recentLimit)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		si, sj := records[i].Result.Level.Severity(), records[j].Result.Level.Severity()
		if si != sj {
			return si > sj
		}
		return records[i].ProcessedAt.After(records[j].ProcessedAt)
	})
	return records, nil
}

func (s *Server) renderWithCSRF(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) {
	data["CSRFToken"] = csrf.Token(r)

	tmpl, ok := s.templates[name]
	if !ok {
		http.Error(w, "Template not found: "+name, http.StatusInternalServerError)
		return
	}
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
	}
}
