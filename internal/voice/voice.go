// Package voice captures microphone audio and exchanges it for
// transcribed text.
//
// The pipeline is a small state machine:
//
//	Idle → RequestingPermission → Recording → StoppedAwaitingConfirm
//	     → Transcribing → Idle
//
// A refused microphone returns the pipeline to idle with
// ErrPermissionDenied; the user must explicitly retry. Stopping with
// nothing captured, or a transcription that comes back empty, is
// ErrNoSpeech — a distinct outcome, not a network failure.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

var (
	// ErrPermissionDenied reports a refused microphone acquisition.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrNoSpeech reports that nothing usable was captured or recognized.
	ErrNoSpeech = errors.New("no speech detected")
)

// Phase is the pipeline state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequestingPermission
	PhaseRecording
	PhaseStoppedAwaitingConfirm
	PhaseTranscribing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRequestingPermission:
		return "requesting permission"
	case PhaseRecording:
		return "recording"
	case PhaseStoppedAwaitingConfirm:
		return "awaiting confirm"
	case PhaseTranscribing:
		return "transcribing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Transcriber is the speech-to-text side of the pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Config configures a Pipeline.
type Config struct {
	Recorder    Recorder
	Transcriber Transcriber
	SampleRate  int          // zero means DefaultSampleRate
	Logger      *slog.Logger // nil means slog.Default()
}

// Pipeline drives one recording at a time. Safe for concurrent use.
type Pipeline struct {
	rec        Recorder
	stt        Transcriber
	sampleRate int
	logger     *slog.Logger

	mu          sync.Mutex
	phase       Phase
	chunks      [][]int16
	wav         []byte // encoded container staged between Stop and Confirm
	collectDone chan struct{}
}

// NewPipeline creates a voice pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Recorder == nil {
		return nil, errors.New("voice: recorder is required")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("voice: transcriber is required")
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		rec:        cfg.Recorder,
		stt:        cfg.Transcriber,
		sampleRate: cfg.SampleRate,
		logger:     cfg.Logger,
	}, nil
}

// Phase returns the current pipeline state.
func (p *Pipeline) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Start acquires the microphone and begins buffering captured chunks.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.phase != PhaseIdle {
		phase := p.phase
		p.mu.Unlock()
		return fmt.Errorf("voice: cannot start while %s", phase)
	}
	p.phase = PhaseRequestingPermission
	p.mu.Unlock()

	ch, err := p.rec.Start(ctx)
	if err != nil {
		p.mu.Lock()
		p.phase = PhaseIdle
		p.mu.Unlock()
		if errors.Is(err, ErrPermissionDenied) {
			p.logger.Warn("microphone permission denied")
			return err
		}
		return fmt.Errorf("acquiring microphone: %w", err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.phase = PhaseRecording
	p.chunks = nil
	p.collectDone = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		for chunk := range ch {
			p.mu.Lock()
			p.chunks = append(p.chunks, chunk)
			p.mu.Unlock()
		}
	}()
	return nil
}

// Stop releases the device, concatenates the buffered chunks and stages
// the encoded waveform container for Confirm. Stopping with zero
// captured samples reports ErrNoSpeech and returns to idle without
// touching the network.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.phase != PhaseRecording {
		phase := p.phase
		p.mu.Unlock()
		return fmt.Errorf("voice: cannot stop while %s", phase)
	}
	done := p.collectDone
	p.mu.Unlock()

	// Release the device first; the chunk channel closes with it and the
	// collector drains whatever is still in flight.
	stopErr := p.rec.Stop()
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, c := range p.chunks {
		total += len(c)
	}
	samples := make([]int16, 0, total)
	for _, c := range p.chunks {
		samples = append(samples, c...)
	}
	p.chunks = nil

	if stopErr != nil {
		p.phase = PhaseIdle
		return fmt.Errorf("releasing microphone: %w", stopErr)
	}
	if len(samples) == 0 {
		p.phase = PhaseIdle
		return ErrNoSpeech
	}

	p.wav = EncodeWAV(samples, p.sampleRate)
	p.phase = PhaseStoppedAwaitingConfirm
	p.logger.Debug("recording staged",
		"samples", len(samples),
		"bytes", len(p.wav),
	)
	return nil
}

// Confirm submits the staged audio for transcription and returns the
// recognized text. The staging is consumed either way; an empty
// transcription is ErrNoSpeech.
func (p *Pipeline) Confirm(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.phase != PhaseStoppedAwaitingConfirm {
		phase := p.phase
		p.mu.Unlock()
		return "", fmt.Errorf("voice: nothing staged to confirm while %s", phase)
	}
	wav := p.wav
	p.wav = nil
	p.phase = PhaseTranscribing
	p.mu.Unlock()

	text, err := p.stt.Transcribe(ctx, wav)

	p.mu.Lock()
	p.phase = PhaseIdle
	p.mu.Unlock()

	if err != nil {
		return "", fmt.Errorf("transcribing: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// Discard drops the staged audio without transcribing it.
func (p *Pipeline) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhaseStoppedAwaitingConfirm {
		return
	}
	p.wav = nil
	p.phase = PhaseIdle
}
