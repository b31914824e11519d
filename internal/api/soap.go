package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrWong99/elektron/internal/events"
	"github.com/MrWong99/elektron/internal/observe"
	"github.com/MrWong99/elektron/internal/soap"
	"github.com/MrWong99/elektron/internal/usage"
	"github.com/MrWong99/elektron/pkg/types"
)

type generateRequest struct {
	Transcript     string `json:"transcript"`
	PatientAge     *int   `json:"patient_age"`
	PatientGender  string `json:"patient_gender"`
	ChiefComplaint string `json:"chief_complaint"`
	DoctorNotes    string `json:"doctor_notes"`
}

type generateResponse struct {
	Note           soap.Note               `json:"soap_note"`
	Confidence     float64                 `json:"confidence_score"`
	ProcessingTime float64                 `json:"processing_time"`
	Strategy       string                  `json:"strategy"`
	Sources        map[soap.Section]string `json:"sources"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	res, err := s.engine.Synthesize(ctx, req.Transcript, soap.PatientContext{
		Age:            req.PatientAge,
		Gender:         req.PatientGender,
		ChiefComplaint: req.ChiefComplaint,
		DoctorNotes:    req.DoctorNotes,
	})
	if err != nil {
		writeFailure(w, r, "SOAP generation", err)
		return
	}

	at := s.now().UTC()
	note := soap.NewNote(res, id.Email, soap.PatientIDFromComplaint(req.ChiefComplaint), at)

	s.track(ctx,
		usage.Activity{User: id.Email, Kind: usage.KindSOAPGenerated, At: at, Elapsed: res.Elapsed},
		events.Event{
			Type:      events.TypeSOAPGenerated,
			NoteID:    note.ID,
			Strategy:  res.Strategy,
			Fallbacks: res.Fallbacks(),
		},
		fmt.Sprintf("Generated SOAP note %s (%s)", note.ID, res.Strategy), "soap_generation")

	writeJSON(w, http.StatusOK, generateResponse{
		Note:           note,
		Confidence:     res.Confidence,
		ProcessingTime: seconds(res.Elapsed),
		Strategy:       res.Strategy,
		Sources:        res.Sources,
	})
}

type refineRequest struct {
	Note            soap.Note `json:"soap_note"`
	RefinementNotes string    `json:"refinement_notes"`
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Older clients send the feedback as a query parameter.
	if strings.TrimSpace(req.RefinementNotes) == "" {
		req.RefinementNotes = r.URL.Query().Get("refinement_notes")
	}
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	start := s.now()
	refined, err := s.engine.Refine(ctx, req.Note, req.RefinementNotes)
	if err != nil {
		writeFailure(w, r, "SOAP refinement", err)
		return
	}
	refined.Author = id.Email

	// Refinements are announced only; usage counts generated notes.
	if s.events != nil {
		if err := s.events.Publish(ctx, events.Event{
			Type:       events.TypeSOAPRefined,
			User:       id.Email,
			NoteID:     refined.ID,
			OccurredAt: refined.GeneratedAt,
			ElapsedMS:  s.now().Sub(start).Milliseconds(),
		}); err != nil {
			observe.Logger(ctx).Warn("failed to publish activity event", "type", events.TypeSOAPRefined, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"refined_soap_note": refined,
		"message":           "SOAP note refined successfully",
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var note soap.Note
	if err := decodeJSON(w, r, &note); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := note.Validate(); err != nil {
		writeFailure(w, r, "SOAP export", types.NewInputError(err))
		return
	}

	name := "soap_note.txt"
	if note.ID != "" {
		name = "soap_note_" + note.ID + ".txt"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(soap.FormatText(note, s.now())))
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": soap.SpecialtyTemplates(),
		"message":   "SOAP templates retrieved successfully",
	})
}

type statisticsJSON struct {
	TotalGenerated        int     `json:"total_generated"`
	ThisMonth             int     `json:"this_month"`
	ThisWeek              int     `json:"this_week"`
	AverageProcessingTime float64 `json:"average_processing_time"`
	TotalTranscriptions   int     `json:"total_transcriptions"`
	LastActivity          *string `json:"last_activity"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	st, err := s.usage.UserStats(r.Context(), id.Email, s.now())
	if err != nil {
		writeFailure(w, r, "statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statistics": statisticsJSON{
			TotalGenerated:        st.TotalSOAPNotes,
			ThisMonth:             st.NotesThisMonth,
			ThisWeek:              st.NotesThisWeek,
			AverageProcessingTime: seconds(st.AverageProcessing),
			TotalTranscriptions:   st.TotalTranscriptions,
			LastActivity:          timestamp(st.LastActivity),
		},
		"user_email": id.Email,
	})
}
