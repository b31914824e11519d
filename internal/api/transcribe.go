package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/elektron/internal/confidence"
	"github.com/MrWong99/elektron/internal/events"
	"github.com/MrWong99/elektron/internal/observe"
	"github.com/MrWong99/elektron/internal/transcript"
	"github.com/MrWong99/elektron/internal/usage"
	"github.com/MrWong99/elektron/pkg/provider/stt"
	"github.com/MrWong99/elektron/pkg/types"
)

// AllowedAudioTypes lists the accepted upload content types.
var AllowedAudioTypes = []string{"audio/wav", "audio/mp3", "audio/m4a", "audio/ogg", "audio/webm"}

// multipartMemory is the in-memory share of a parsed upload; the rest
// spills to temp files.
const multipartMemory = 32 << 20

type segmentJSON struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	AvgLogProb *float64 `json:"avg_logprob"`
}

type transcriptionResponse struct {
	Transcript     string                  `json:"transcript"`
	Duration       float64                 `json:"duration"`
	Confidence     *float64                `json:"confidence"`
	Language       string                  `json:"language,omitempty"`
	Model          string                  `json:"model,omitempty"`
	Segments       []segmentJSON           `json:"segments"`
	Corrections    []transcript.Correction `json:"corrections,omitempty"`
	ProcessingTime float64                 `json:"processing_time"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.stt == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription service unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("audio file exceeds %d bytes", tooBig.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with audio_file")
		return
	}
	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_file is required")
		return
	}
	defer file.Close()

	contentType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if !slices.Contains(AllowedAudioTypes, contentType) {
		writeError(w, http.StatusBadRequest,
			"Unsupported audio format. Supported: "+strings.Join(AllowedAudioTypes, ", "))
		return
	}
	correct, _ := strconv.ParseBool(r.FormValue("correct_terms"))

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio_file")
		return
	}

	ctx, span := observe.StartSpan(r.Context(), "api.transcribe",
		trace.WithAttributes(attribute.Int("audio.bytes", len(audio))))
	defer span.End()
	log := observe.Logger(ctx)
	id, _ := IdentityFrom(ctx)

	start := s.now()
	t, err := s.stt.Transcribe(ctx, stt.Request{
		Audio:       audio,
		ContentType: contentType,
		Filename:    header.Filename,
		Language:    r.FormValue("language"),
	})
	elapsed := s.now().Sub(start)
	s.metrics.STTDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(observe.Attr("model", s.stt.Model())))
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, stt.ErrUnsupportedFormat):
			writeError(w, http.StatusBadRequest, "audio could not be decoded")
		case ctx.Err() != nil:
			log.Info("transcription cancelled by client")
		default:
			log.Error("transcription failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "transcription service unavailable")
		}
		return
	}

	text := strings.TrimSpace(t.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "No speech detected in audio")
		return
	}

	score, err := confidence.ForTranscript(*t)
	if err != nil {
		writeFailure(w, r, "confidence", err)
		return
	}
	if score == nil {
		s.metrics.ConfidenceUnavailable.Add(ctx, 1)
	} else {
		s.metrics.TranscriptConfidence.Record(ctx, *score)
	}

	resp := transcriptionResponse{
		Transcript: text,
		Duration:   t.Duration.Seconds(),
		Confidence: score,
		Language:   t.Language,
		Model:      s.stt.Model(),
		Segments:   segmentsJSON(t.Segments),
	}

	if correct && s.corrector != nil {
		var vocab []string
		if s.vocabulary != nil {
			vocab = s.vocabulary()
		}
		c, err := s.corrector.Correct(ctx, *t, vocab)
		if err != nil {
			log.Warn("vocabulary correction failed, returning raw transcript", "err", err)
		} else {
			resp.Transcript = strings.TrimSpace(c.Text)
			resp.Corrections = c.Corrections
		}
	}
	resp.ProcessingTime = seconds(s.now().Sub(start))

	s.track(ctx,
		usage.Activity{User: id.Email, Kind: usage.KindTranscriptionCompleted, At: s.now(), Elapsed: elapsed},
		events.Event{
			Type:     events.TypeTranscriptionCompleted,
			Model:    resp.Model,
			Language: t.Language,
			Duration: resp.Duration,
			Score:    score,
		},
		fmt.Sprintf("Transcribed %.1fs of audio", resp.Duration), "transcription")

	writeJSON(w, http.StatusOK, resp)
}

func segmentsJSON(segs []types.Segment) []segmentJSON {
	out := make([]segmentJSON, 0, len(segs))
	for _, seg := range segs {
		out = append(out, segmentJSON{
			Start:      seg.Start.Seconds(),
			End:        seg.End.Seconds(),
			Text:       strings.TrimSpace(seg.Text),
			AvgLogProb: seg.AvgLogProb,
		})
	}
	return out
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	current := ""
	if s.stt != nil {
		current = s.stt.Model()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available_models":        s.models,
		"current_model":           current,
		"languages_supported":     s.languages,
		"recommended_for_medical": "base",
		"transcription_available": s.stt != nil,
	})
}

// seconds renders d with millisecond precision for JSON bodies.
func seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
