package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"sciquiz-service/internal/domain"
	"sciquiz-service/internal/leaderboard"
)

// QuestionRepository is the backing store for the question bank endpoints.
type QuestionRepository interface {
	Questions(ctx context.Context, qctx domain.QuizContext) ([]map[string]any, error)
	Add(ctx context.Context, qctx domain.QuizContext, record map[string]any) (int64, error)
}

// LeaderboardRepository is the backing store for the leaderboard endpoints.
type LeaderboardRepository interface {
	Add(ctx context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error)
	List(ctx context.Context, f leaderboard.Filters) ([]domain.LeaderboardEntry, error)
	Clear(ctx context.Context) (int, error)
}

// APIHandler serves the question bank and leaderboard REST endpoints that
// quiz clients (including this service's own source adapter and
// leaderboard client) consume.
type APIHandler struct {
	questions QuestionRepository
	board     LeaderboardRepository
}

func NewAPIHandler(questions QuestionRepository, board LeaderboardRepository) *APIHandler {
	return &APIHandler{questions: questions, board: board}
}

// Register mounts the API routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/questions", h.handleQuestions)
	mux.HandleFunc("/api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/api/leaderboard/clear", h.handleLeaderboardClear)
}

func (h *APIHandler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listQuestions(w, r)
	case http.MethodPost:
		h.addQuestion(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandler) listQuestions(w http.ResponseWriter, r *http.Request) {
	qctx, ok := quizContextFromQuery(r)
	if !ok {
		http.Error(w, "missing or invalid classId, level, or topic", http.StatusBadRequest)
		return
	}
	records, err := h.questions.Questions(r.Context(), qctx)
	if err != nil {
		log.Printf("list questions for %s: %v", qctx, err)
		http.Error(w, "failed to load questions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, records)
}

type addQuestionRequest struct {
	ClassID  string         `json:"classId"`
	Level    string         `json:"level"`
	Topic    int            `json:"topic"`
	Question map[string]any `json:"question"`
}

func (h *APIHandler) addQuestion(w http.ResponseWriter, r *http.Request) {
	var req addQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.ClassID == "" || req.Level == "" || len(req.Question) == 0 {
		http.Error(w, "classId, level, and question are required", http.StatusBadRequest)
		return
	}
	qctx := domain.QuizContext{ClassID: req.ClassID, Level: req.Level, TopicID: req.Topic}
	id, err := h.questions.Add(r.Context(), qctx, req.Question)
	if err != nil {
		log.Printf("add question for %s: %v", qctx, err)
		http.Error(w, "failed to store question", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "question added", "id": id})
}

func (h *APIHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listLeaderboard(w, r)
	case http.MethodPost:
		h.addLeaderboardEntry(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandler) listLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := leaderboard.Filters{
		ClassID: q.Get("classId"),
		Level:   q.Get("level"),
		Topic:   q.Get("topic"),
		SortBy:  q.Get("sortBy"),
		Order:   q.Get("order"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = limit
	}
	entries, err := h.board.List(r.Context(), f)
	if err != nil {
		log.Printf("list leaderboard: %v", err)
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *APIHandler) addLeaderboardEntry(w http.ResponseWriter, r *http.Request) {
	// Score is a pointer so an absent field is distinguishable from a
	// legitimate zero; the shadowed entry field never sees the raw JSON.
	var req struct {
		domain.LeaderboardEntry
		Score *int `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Score == nil {
		http.Error(w, "score must be a number", http.StatusBadRequest)
		return
	}
	entry := req.LeaderboardEntry
	entry.Score = *req.Score
	if entry.Name == "" {
		entry.Name = "Guest"
	}
	saved, err := h.board.Add(r.Context(), entry)
	if err != nil {
		log.Printf("add leaderboard entry: %v", err)
		http.Error(w, "failed to store entry", http.StatusInternalServerError)
		return
	}
	// the echoed entry carries the server id and timestamp so clients can
	// mirror it locally
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "entry": saved})
}

func (h *APIHandler) handleLeaderboardClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cleared, err := h.board.Clear(r.Context())
	if err != nil {
		log.Printf("clear leaderboard: %v", err)
		http.Error(w, "failed to clear leaderboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
