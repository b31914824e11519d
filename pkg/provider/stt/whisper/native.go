// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/elektron/pkg/provider/stt"
	"github.com/MrWong99/elektron/pkg/types"
)

var _ stt.Provider = (*NativeProvider)(nil)

const (
	// whisperSampleRate is the input rate whisper.cpp expects.
	whisperSampleRate = 16000

	// minTokenProb keeps ln(p) finite for tokens the model reports as p=0.
	minTokenProb = 1e-6
)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings.
// The model is loaded once and shared; every call creates its own context.
type NativeProvider struct {
	model     whisperlib.Model
	modelName string
	language  string
}

// NativeOption is a functional option for NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the default recognition language.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative loads the GGML model at modelPath.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{
		model:     model,
		modelName: strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
		language:  defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the model.
func (p *NativeProvider) Close() error {
	return p.model.Close()
}

// Model implements stt.Provider.
func (p *NativeProvider) Model() string { return p.modelName }

// Transcribe implements stt.Provider. Only PCM WAV input is accepted.
func (p *NativeProvider) Transcribe(ctx context.Context, req stt.Request) (*types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	pcm, rate, channels, err := decodeWAV(req.Audio)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w: %v", stt.ErrUnsupportedFormat, err)
	}
	samples := resample(pcmToFloat32Mono(pcm, channels), rate, whisperSampleRate)

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "err", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	t := &types.Transcript{
		Language: lang,
		Duration: time.Duration(len(samples)) * time.Second / whisperSampleRate,
	}
	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		t.Segments = append(t.Segments, types.Segment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       text,
			AvgLogProb: avgLogProb(seg.Tokens),
		})
	}
	t.Text = strings.Join(parts, " ")
	return t, nil
}

// avgLogProb averages ln(p) over the text tokens of a segment. Special
// tokens such as [_BEG_] and [_TT_123] are skipped. Returns nil when no text
// token remains.
func avgLogProb(tokens []whisperlib.Token) *float64 {
	var sum float64
	var n int
	for _, tok := range tokens {
		if strings.HasPrefix(tok.Text, "[_") || strings.HasPrefix(tok.Text, "<|") {
			continue
		}
		sum += math.Log(math.Max(float64(tok.P), minTokenProb))
		n++
	}
	if n == 0 {
		return nil
	}
	return types.Float64(sum / float64(n))
}
