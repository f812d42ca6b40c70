package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/hostr/internal/logsink"
	"github.com/loykin/hostr/internal/metrics"
	"github.com/loykin/hostr/internal/project"
	"github.com/loykin/hostr/internal/sampler"
	"github.com/loykin/hostr/internal/supervisor"
)

// DefaultLogLines is the tail length when the caller does not ask for one.
const DefaultLogLines = 20

// Router exposes the supervisor's operations over HTTP. Endpoints under
// basePath:
//
//	POST   /create       body: {"name": ...}
//	GET    /projects     list of names
//	POST   /start        query: name=...
//	POST   /stop         query: name=...
//	POST   /restart      query: name=...
//	GET    /status       query: name=...
//	GET    /logs         query: name=...&lines=N
//	GET    /usage        query: name=...
//	POST   /install      query: name=...
//	POST   /command      query: name=...  body: {"command": ...}
//	DELETE /delete       query: name=...
//	GET    /healthz
//	GET    /metrics
type Router struct {
	sup      *supervisor.Supervisor
	basePath string
}

func NewRouter(sup *supervisor.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/create", r.handleCreate)
	group.GET("/projects", r.handleList)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.GET("/status", r.handleStatus)
	group.GET("/logs", r.handleLogs)
	group.GET("/usage", r.handleUsage)
	group.POST("/install", r.handleInstall)
	group.POST("/command", r.handleSetCommand)
	group.DELETE("/delete", r.handleDelete)
	group.GET("/healthz", func(c *gin.Context) { writeJSON(c, http.StatusOK, okResp{OK: true}) })
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) *http.Server {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Install can legitimately take minutes; the write timeout must
		// outlive the install ceiling.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- responses ---

type errorResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type okResp struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	PID    int    `json:"pid,omitempty"`
}

type statusResp struct {
	supervisor.Status
	Text string `json:"text"`
}

type logsResp struct {
	Text      string `json:"text"`
	Empty     bool   `json:"empty"`
	TotalSize int64  `json:"total_size"`
}

type usageResp struct {
	sampler.Usage
	Text string `json:"text"`
}

// kindOf maps supervisor error kinds to a stable wire label and HTTP status.
func kindOf(err error) (string, int) {
	switch {
	case errors.Is(err, supervisor.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, supervisor.ErrAlreadyExists):
		return "already_exists", http.StatusConflict
	case errors.Is(err, supervisor.ErrAlreadyRunning):
		return "already_running", http.StatusConflict
	case errors.Is(err, supervisor.ErrNotRunning):
		return "not_running", http.StatusConflict
	case errors.Is(err, supervisor.ErrInvalidName):
		return "invalid_name", http.StatusBadRequest
	case errors.Is(err, supervisor.ErrInvalidCommand):
		return "invalid_command", http.StatusBadRequest
	case errors.Is(err, supervisor.ErrNoManifest):
		return "no_manifest", http.StatusBadRequest
	case errors.Is(err, logsink.ErrNoLogs):
		return "no_logs", http.StatusNotFound
	case errors.Is(err, supervisor.ErrTimedOut):
		return "timed_out", http.StatusGatewayTimeout
	case errors.Is(err, supervisor.ErrPartialDelete):
		return "partial_delete", http.StatusMultiStatus
	case errors.Is(err, supervisor.ErrPersistenceFailed):
		return "persistence_failed", http.StatusInternalServerError
	case errors.Is(err, supervisor.ErrLaunchFailed):
		return "launch_failed", http.StatusBadRequest
	case errors.Is(err, supervisor.ErrProbeFailed):
		return "probe_failed", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	kind, code := kindOf(err)
	writeJSON(c, code, errorResp{Error: err.Error(), Kind: kind})
}

// projectName validates the name query parameter; project names become
// directory names, so unsafe input is rejected before it reaches the core.
func projectName(c *gin.Context) (string, bool) {
	name := c.Query("name")
	if !project.ValidName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{
			Error: "invalid name: allowed [A-Za-z0-9._-], no '..' or path separators",
			Kind:  "invalid_name",
		})
		return "", false
	}
	return name, true
}

// --- handlers ---

func (r *Router) handleCreate(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error(), Kind: "bad_request"})
		return
	}
	m, err := r.sup.Create(req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, Detail: "project created at " + m.Path})
}

func (r *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"projects": r.sup.List()})
}

func (r *Router) handleStart(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	pid, err := r.sup.Start(name)
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, PID: pid, Detail: fmt.Sprintf("started with pid %d", pid)})
}

func (r *Router) handleStop(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	if err := r.sup.Stop(name); err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, Detail: "stopped"})
}

func (r *Router) handleRestart(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	pid, err := r.sup.Restart(name)
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, PID: pid, Detail: fmt.Sprintf("restarted with pid %d", pid)})
}

func (r *Router) handleStatus(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	st, err := r.sup.Status(name)
	if err != nil {
		fail(c, err)
		return
	}
	text := "stopped"
	if st.Running {
		text = fmt.Sprintf("running (pid %d)", st.PID)
	}
	writeJSON(c, http.StatusOK, statusResp{Status: st, Text: text})
}

func (r *Router) handleLogs(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	lines := DefaultLogLines
	if v := c.Query("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "lines must be a positive integer", Kind: "bad_request"})
			return
		}
		lines = n
	}
	tail, err := r.sup.Logs(name, lines)
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, logsResp{Text: tail.Text, Empty: tail.Text == "", TotalSize: tail.TotalSize})
}

func (r *Router) handleUsage(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	u, err := r.sup.Usage(name)
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, usageResp{Usage: u, Text: u.String()})
}

func (r *Router) handleInstall(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	out, err := r.sup.Install(c.Request.Context(), name)
	if err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, Detail: "dependencies installed\n" + out})
}

func (r *Router) handleSetCommand(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	var req struct {
		Command string `json:"command"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error(), Kind: "bad_request"})
		return
	}
	if err := r.sup.SetRunCommand(name, req.Command); err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, Detail: "run command updated"})
}

func (r *Router) handleDelete(c *gin.Context) {
	name, ok := projectName(c)
	if !ok {
		return
	}
	if err := r.sup.Delete(name); err != nil {
		fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true, Detail: "project deleted"})
}
