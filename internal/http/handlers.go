package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alecsiomatiko/boomlearnos-sub001/internal/auth"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/models"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/repo"
	"github.com/alecsiomatiko/boomlearnos-sub001/internal/service"
)

// FlexTime accepts both YYYY-MM-DD (date inputs) and RFC3339 timestamps.
type FlexTime struct {
	time.Time
}

func (ft *FlexTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		ft.Time = t
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		ft.Time = t
		return nil
	}
	return errors.New("invalid date/time format")
}

func (ft *FlexTime) ToTimePtr() *time.Time {
	if ft == nil || ft.Time.IsZero() {
		return nil
	}
	t := ft.Time
	return &t
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type entityResponse struct {
	ID string `json:"id"`
}

type taskRequest struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Difficulty       string    `json:"difficulty"`
	Priority         string    `json:"priority"`
	DueAt            *FlexTime `json:"due_at"`
	EstimatedMinutes *int      `json:"estimated_minutes"`
}

type completeTaskRequest struct {
	CompletedAt   *FlexTime `json:"completed_at"`
	ActualMinutes *int      `json:"actual_minutes"`
}

type checkinRequest struct {
	Date        *FlexTime `json:"date"`
	EnergyLevel int       `json:"energy_level"`
}

type adjustRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

type ruleRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Kind        string  `json:"kind"`
	Target      float64 `json:"target"`
	Window      string  `json:"window"`
	Active      *bool   `json:"active"`
}

func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing account")
		return "", false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid id")
		return "", false
	}
	return id, true
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth ---

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password required")
		return
	}
	userID, err := a.Service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "REGISTRATION_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{ID: userID})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := a.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token})
}

// --- account ---

func (a *API) handleAccountSummary(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	summary, err := a.Service.Summary(r.Context(), acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := a.Repo.ListTransactions(r.Context(), acct, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *API) handleListCheckins(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	checkins, err := a.Repo.ListCheckins(r.Context(), acct, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list checkins")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkins": checkins})
}

// --- tasks ---

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	items, err := a.Repo.ListWorkItems(r.Context(), acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": items})
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title required")
		return
	}
	item := models.WorkItem{
		AccountID:        acct,
		Title:            req.Title,
		Description:      req.Description,
		Category:         models.Category(req.Category),
		Difficulty:       models.Difficulty(req.Difficulty),
		Priority:         models.Priority(req.Priority),
		DueAt:            req.DueAt.ToTimePtr(),
		EstimatedMinutes: req.EstimatedMinutes,
	}
	if !item.Category.Valid() || !item.Difficulty.Valid() || !item.Priority.Valid() {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown category, difficulty or priority")
		return
	}
	id, err := a.Repo.CreateWorkItem(r.Context(), item)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{ID: id})
}

func (a *API) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req completeTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	completedAt := time.Now().UTC()
	if t := req.CompletedAt.ToTimePtr(); t != nil {
		completedAt = *t
	}
	result, err := a.Service.GrantForCompletion(r.Context(), acct, id, completedAt, req.ActualMinutes)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
		case errors.Is(err, repo.ErrAlreadyCompleted):
			writeError(w, http.StatusConflict, "ALREADY_COMPLETED", "Task already completed")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete task")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- check-ins ---

func (a *API) handleRecordCheckin(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	var req checkinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EnergyLevel < 1 || req.EnergyLevel > 10 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Energy level must be 1..10")
		return
	}
	date := time.Now().UTC()
	if t := req.Date.ToTimePtr(); t != nil {
		date = *t
	}
	result, err := a.Service.RecordCheckin(r.Context(), acct, date, req.EnergyLevel)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateCheckin) {
			writeError(w, http.StatusConflict, "ALREADY_CHECKED_IN", "Check-in already recorded for this date")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record check-in")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// --- manual adjustment ---

func (a *API) handleAdjustGems(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Amount must be non-zero")
		return
	}
	txn, err := a.Service.AdjustGems(r.Context(), acct, req.Amount, req.Description)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientGems) {
			writeError(w, http.StatusConflict, "INSUFFICIENT_GEMS", "Adjustment would make the total negative")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to adjust gems")
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// --- badges ---

func (a *API) handleBadgeBoard(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	board, err := a.Service.BadgeBoard(r.Context(), acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load badges")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": board})
}

func (a *API) handleListUnlocks(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	unlocks, err := a.Repo.ListUnlocks(r.Context(), acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list unlocks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocks": unlocks})
}

func ruleFromRequest(req ruleRequest) (models.BadgeRule, string) {
	rule := models.BadgeRule{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Kind:        models.RuleKind(req.Kind),
		Target:      req.Target,
		Window:      models.RuleWindow(req.Window),
		Active:      true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if rule.Window == "" {
		rule.Window = models.WindowAllTime
	}
	switch {
	case rule.Name == "":
		return rule, "Name required"
	case !rule.Kind.Valid():
		return rule, "Unknown rule kind"
	case !rule.Window.Valid():
		return rule, "Unknown window"
	case rule.Target <= 0 && rule.Kind != models.RuleCustom:
		return rule, "Target must be positive"
	}
	return rule, ""
}

func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, problem := ruleFromRequest(req)
	if problem != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", problem)
		return
	}
	id, err := a.Repo.CreateRule(r.Context(), rule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create rule")
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{ID: id})
}

func (a *API) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ruleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, problem := ruleFromRequest(req)
	if problem != "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", problem)
		return
	}
	rule.ID = id
	if err := a.Repo.UpdateRule(r.Context(), rule); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update rule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Repo.DeactivateRule(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to deactivate rule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
