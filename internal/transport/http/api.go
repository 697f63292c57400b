package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"chapter-quiz/internal/app"
	"chapter-quiz/internal/domain"
)

const maxImportSize = 1 << 20

// API serves chapter listing, bulk import and content reload as JSON.
type API struct {
	service *app.QuizService
	repo    *app.ContentRepository
	custom  *app.CustomStore
}

func NewAPI(service *app.QuizService, repo *app.ContentRepository, custom *app.CustomStore) *API {
	return &API{service: service, repo: repo, custom: custom}
}

// NewMux wires the API, the websocket endpoint and a health check.
func NewMux(api *API, ws *WSHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("/chapters", api.Chapters)
	mux.HandleFunc("/import", api.Import)
	mux.HandleFunc("/reload", api.Reload)
	return mux
}

type chaptersResponse struct {
	Chapters []domain.ChapterStatus  `json:"chapters"`
	Progress domain.ProgressOverview `json:"progress"`
}

type importResponse struct {
	Added   int    `json:"added"`
	Message string `json:"message"`
}

type reloadResponse struct {
	Chapters int      `json:"chapters"`
	Skipped  []string `json:"skipped"`
}

func (a *API) Chapters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	statuses, err := a.service.Chapters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	overview, err := a.service.Overview(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chaptersResponse{Chapters: statuses, Progress: overview})
}

func (a *API) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	added, err := a.custom.ImportBulk(r.Context(), body)
	if errors.Is(err, domain.ErrValidation) {
		writeError(w, http.StatusBadRequest, "Error: "+err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Added: added, Message: "Bulk questions added successfully!"})
}

func (a *API) Reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	chapters, err := a.repo.Refresh(r.Context())
	if err != nil {
		log.Printf("reload failed: %v", err)
		var loadErr *domain.LoadError
		if errors.As(err, &loadErr) {
			writeError(w, http.StatusBadGateway, loadErr.UserMessage())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := reloadResponse{Chapters: len(chapters), Skipped: []string{}}
	for _, warning := range a.repo.Warnings() {
		resp.Skipped = append(resp.Skipped, warning.File)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}
