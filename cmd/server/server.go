package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"migration-auditor/internal/audit"
	"migration-auditor/internal/catalog"
	"migration-auditor/internal/config"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/report"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域
	},
}

// 任务状态
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunRequest 发起一次校验
type RunRequest struct {
	Validator string         `json:"validator"` // tables/functions/endpoints/references/webhooks
	Filter    catalog.Filter `json:"filter"`
	Save      bool           `json:"save"`
}

// RunTask 一次异步校验
type RunTask struct {
	ID         string          `json:"id"`
	Validator  catalog.Kind    `json:"validator"`
	Filter     catalog.Filter  `json:"filter"`
	Status     string          `json:"status"`
	Done       int             `json:"done"`
	Total      int             `json:"total"`
	Message    string          `json:"message"`
	Summary    *report.Summary `json:"summary,omitempty"`
	ReportPath string          `json:"report_path,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	outcomes []outcome.Outcome
}

func (t *RunTask) finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Event WebSocket 推送的消息
type Event struct {
	Type    string           `json:"type"` // outcome / status
	Outcome *outcome.Outcome `json:"outcome,omitempty"`
	Task    *RunTask         `json:"task,omitempty"`
}

// Server 运行服务：目录和审计器在进程内共享，任务保存在内存
type Server struct {
	auditor *audit.Auditor
	log     zerolog.Logger
	poll    time.Duration

	mu    sync.RWMutex
	tasks map[string]*RunTask
}

// NewServer 创建服务
func NewServer(a *audit.Auditor, log zerolog.Logger) *Server {
	return &Server{
		auditor: a,
		log:     log,
		poll:    500 * time.Millisecond,
		tasks:   make(map[string]*RunTask),
	}
}

// Handler 路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunStatus)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	mux.HandleFunc("/api/catalog", s.handleCatalog)
	mux.HandleFunc("/api/record-source/check", s.handleCheckRecordSource)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleRuns POST 创建任务，GET 列出任务
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		list := make([]RunTask, 0, len(s.tasks))
		for _, t := range s.tasks {
			list = append(list, s.snapshotLocked(t))
		}
		s.mu.RUnlock()
		writeJSON(w, http.StatusOK, list)
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := audit.ParseKind(req.Validator)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	task := &RunTask{
		ID:        uuid.NewString(),
		Validator: kind,
		Filter:    req.Filter,
		Status:    StatusPending,
		Message:   "任务已创建，等待执行...",
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	go s.execute(task, req.Save)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": task.ID,
		"status":  StatusPending,
	})
}

// handleRunStatus 查询任务状态
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")

	task, ok := s.snapshot(id)
	if !ok {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleWebSocket 推送新的结果和任务状态，任务结束后关闭
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("run_id")
	if _, ok := s.snapshot(id); !ok {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	sent := 0
	for {
		s.mu.RLock()
		task := s.tasks[id]
		pending := append([]outcome.Outcome(nil), task.outcomes[sent:]...)
		snap := s.snapshotLocked(task)
		s.mu.RUnlock()

		for i := range pending {
			if err := conn.WriteJSON(Event{Type: "outcome", Outcome: &pending[i]}); err != nil {
				return
			}
		}
		sent += len(pending)

		if err := conn.WriteJSON(Event{Type: "status", Task: &snap}); err != nil {
			return
		}
		if snap.finished() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, snap.Status))
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

// handleCatalog 目录概况
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	store := s.auditor.Store()
	all := catalog.Filter{}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    store.Version(),
		"api_groups": store.APIGroupNames(),
		"counts": map[catalog.Kind]int{
			catalog.KindTable:     len(store.ListTables(all)),
			catalog.KindFunction:  len(store.ActiveFunctions(all)),
			catalog.KindEndpoint:  len(store.FilterEndpoints(all)),
			catalog.KindReference: len(store.ListReferenceEdges(all)),
			catalog.KindWebhook:   len(store.ListWebhooks(all)),
		},
	})
}

// handleCheckRecordSource 测试记录源连接
func (s *Server) handleCheckRecordSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req config.RecordConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	source, err := audit.OpenRecordSource(req, nil)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "连接失败: " + err.Error(),
		})
		return
	}
	_ = source.Close()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "连接成功！",
	})
}

// execute 运行校验并回写任务状态
func (s *Server) execute(task *RunTask, save bool) {
	update := func(fn func(t *RunTask)) {
		s.mu.Lock()
		fn(task)
		task.UpdatedAt = time.Now()
		s.mu.Unlock()
	}

	update(func(t *RunTask) {
		t.Status = StatusRunning
		t.Message = "校验中..."
	})

	r, err := s.auditor.Run(context.Background(), task.Validator, task.Filter, func(done, total int, o outcome.Outcome) {
		update(func(t *RunTask) {
			t.Done = done
			t.Total = total
			t.outcomes = append(t.outcomes, o)
		})
	})
	if err != nil {
		s.log.Error().Err(err).Str("task_id", task.ID).Msg("run failed")
		update(func(t *RunTask) {
			t.Status = StatusFailed
			t.Message = err.Error()
		})
		return
	}

	var path string
	message := "校验完成"
	if save {
		saved, err := s.auditor.Persist(r)
		if err != nil {
			s.log.Error().Err(err).Str("task_id", task.ID).Msg("persist report failed")
			message = "校验完成，报告保存失败: " + err.Error()
		}
		path = saved.JSON
	}

	summary := r.Summary
	update(func(t *RunTask) {
		t.Status = StatusCompleted
		t.Total = summary.Total
		t.Done = summary.Total
		t.Summary = &summary
		t.ReportPath = path
		t.Message = message
	})
}

func (s *Server) snapshot(id string) (RunTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return RunTask{}, false
	}
	return s.snapshotLocked(task), true
}

func (s *Server) snapshotLocked(t *RunTask) RunTask {
	snap := *t
	snap.outcomes = nil
	return snap
}
