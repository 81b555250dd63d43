// Package server expõe os gatilhos HTTP do pipeline. Falha parcial de uma
// rodada volta como resumo 200, nunca como 500; só requisição malformada
// gera erro HTTP.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/abhingram/deals247online-sub000/internal/ingest"
	"github.com/abhingram/deals247online-sub000/internal/refresh"
)

// Server agrupa os gatilhos do pipeline atrás de um mux HTTP.
type Server struct {
	ingestor  *ingest.Ingestor
	refresher *refresh.Refresher
}

// New cria o servidor de gatilhos.
func New(ingestor *ingest.Ingestor, refresher *refresh.Refresher) *Server {
	return &Server{ingestor: ingestor, refresher: refresher}
}

// Handler registra as rotas e retorna o handler raiz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/deals/cleanup", s.handleCleanup)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, jsonError{Error: message, Details: details})
}

type ingestRequest struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	MaxItems int      `json:"max_items"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "esperado application/json")
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "category é obrigatória")
		return
	}

	summary := s.ingestor.IngestCategory(r.Context(), req.Category, req.Keywords, req.MaxItems)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	var result refresh.Result
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		result = s.refresher.RefreshCategory(r.Context(), category)
	} else {
		result = s.refresher.RefreshAllPrices(r.Context())
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	count, err := s.refresher.CleanupExpiredDeals(r.Context())
	if err != nil {
		log.Printf("Erro na limpeza de deals: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "cleanup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deactivated": count})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	stats, err := s.ingestor.GetStats(r.Context())
	if err != nil {
		log.Printf("Erro ao agregar estatísticas: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
