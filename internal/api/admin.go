package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MrWong99/elektron/internal/usage"
)

type userStatsJSON struct {
	DoctorEmail         string  `json:"doctor_email"`
	TotalTranscriptions int     `json:"total_transcriptions"`
	TotalSOAPNotes      int     `json:"total_soap_notes"`
	LastActivity        *string `json:"last_activity"`
}

type adminStatsJSON struct {
	TotalUsers          int             `json:"total_users"`
	ActiveUsersToday    int             `json:"active_users_today"`
	TotalTranscriptions int             `json:"total_transcriptions"`
	TotalSOAPNotes      int             `json:"total_soap_notes"`
	TopUsers            []userStatsJSON `json:"top_users"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.usage.Stats(r.Context(), s.now())
	if err != nil {
		writeFailure(w, r, "admin stats", err)
		return
	}
	out := adminStatsJSON{
		TotalUsers:          st.TotalUsers,
		ActiveUsersToday:    st.ActiveUsersToday,
		TotalTranscriptions: st.TotalTranscriptions,
		TotalSOAPNotes:      st.TotalSOAPNotes,
		TopUsers:            make([]userStatsJSON, 0, len(st.TopUsers)),
	}
	for _, u := range st.TopUsers {
		out.TopUsers = append(out.TopUsers, userStatsJSON{
			DoctorEmail:         u.User,
			TotalTranscriptions: u.TotalTranscriptions,
			TotalSOAPNotes:      u.TotalSOAPNotes,
			LastActivity:        timestamp(u.LastActivity),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	q := usage.LogQuery{Level: usage.Level(r.URL.Query().Get("level"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > usage.DefaultMaxLogs {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		q.Limit = n
	}
	if q.Level != "" && !q.Level.IsValid() {
		writeError(w, http.StatusBadRequest, "level must be one of info, warning, error")
		return
	}

	logs, err := s.usage.Logs(r.Context(), q)
	if err != nil {
		writeFailure(w, r, "admin logs", err)
		return
	}
	if logs == nil {
		logs = []usage.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "total": len(logs)})
}

type addLogRequest struct {
	Message string      `json:"message"`
	Level   usage.Level `json:"level"`
	Source  string      `json:"source"`
}

func (s *Server) handleAddLog(w http.ResponseWriter, r *http.Request) {
	var req addLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, _ := IdentityFrom(r.Context())
	e, err := s.usage.AddLog(r.Context(), usage.LogEntry{
		Timestamp: s.now(),
		Level:     req.Level,
		Message:   req.Message,
		UserEmail: id.Email,
		Source:    req.Source,
	})
	if err != nil {
		if errors.Is(err, usage.ErrInvalidLog) {
			writeError(w, http.StatusBadRequest, "message is required and level must be one of info, warning, error")
			return
		}
		writeFailure(w, r, "add log", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// timestamp formats t as RFC 3339, or nil for the zero time.
func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
