package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeRecorder hands out a channel preloaded with chunks. Stop closes
// the channel so the collector drains whatever is buffered, like a real
// device release.
type fakeRecorder struct {
	chunks   [][]int16
	startErr error
	stopErr  error

	ch    chan []int16
	stops int
}

func (f *fakeRecorder) Start(ctx context.Context) (<-chan []int16, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.ch = make(chan []int16, len(f.chunks)+1)
	for _, c := range f.chunks {
		f.ch <- c
	}
	return f.ch, nil
}

func (f *fakeRecorder) Stop() error {
	f.stops++
	close(f.ch)
	return f.stopErr
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
	wav   []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	f.calls++
	f.wav = wav
	return f.text, f.err
}

func newTestPipeline(t *testing.T, rec Recorder, stt Transcriber) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Config{
		Recorder:    rec,
		Transcriber: stt,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestNewPipeline_Validation(t *testing.T) {
	if _, err := NewPipeline(Config{Transcriber: &fakeTranscriber{}}); err == nil {
		t.Error("nil recorder accepted")
	}
	if _, err := NewPipeline(Config{Recorder: &fakeRecorder{}}); err == nil {
		t.Error("nil transcriber accepted")
	}
}

func TestPipeline_RecordConfirmFlow(t *testing.T) {
	rec := &fakeRecorder{chunks: [][]int16{{1, 2}, {3}}}
	stt := &fakeTranscriber{text: "打开客厅的灯"}
	p := newTestPipeline(t, rec, stt)

	if p.Phase() != PhaseIdle {
		t.Fatalf("initial phase = %v", p.Phase())
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.Phase() != PhaseRecording {
		t.Fatalf("phase after Start = %v", p.Phase())
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Phase() != PhaseStoppedAwaitingConfirm {
		t.Fatalf("phase after Stop = %v", p.Phase())
	}
	if rec.stops != 1 {
		t.Errorf("device released %d times", rec.stops)
	}

	text, err := p.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if text != "打开客厅的灯" {
		t.Errorf("text = %q", text)
	}
	if p.Phase() != PhaseIdle {
		t.Errorf("phase after Confirm = %v", p.Phase())
	}

	// The transcriber received a well-formed container holding the
	// concatenated chunks at the default rate.
	if len(stt.wav) != 44+3*2 {
		t.Fatalf("wav len = %d", len(stt.wav))
	}
	if v := u32(t, stt.wav, 24); v != DefaultSampleRate {
		t.Errorf("sample rate = %d", v)
	}
	wantData := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	if !bytes.Equal(stt.wav[44:], wantData) {
		t.Errorf("data = % x, want % x", stt.wav[44:], wantData)
	}
}

func TestPipeline_PhaseDuringTranscription(t *testing.T) {
	rec := &fakeRecorder{chunks: [][]int16{{7}}}
	var (
		p    *Pipeline
		seen Phase
	)
	p = newTestPipeline(t, rec, transcribeFunc(func(ctx context.Context, wav []byte) (string, error) {
		seen = p.Phase()
		return "ok", nil
	}))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := p.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if seen != PhaseTranscribing {
		t.Errorf("phase during transcription = %v", seen)
	}
}

type transcribeFunc func(ctx context.Context, wav []byte) (string, error)

func (f transcribeFunc) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return f(ctx, wav)
}

func TestPipeline_StopWithNothingCaptured(t *testing.T) {
	rec := &fakeRecorder{}
	stt := &fakeTranscriber{text: "should never be asked"}
	p := newTestPipeline(t, rec, stt)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := p.Stop()
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Stop error = %v, want ErrNoSpeech", err)
	}
	if p.Phase() != PhaseIdle {
		t.Errorf("phase = %v, want idle", p.Phase())
	}
	if stt.calls != 0 {
		t.Errorf("transcriber called %d times for an empty recording", stt.calls)
	}
}

func TestPipeline_PermissionDenied(t *testing.T) {
	rec := &fakeRecorder{
		chunks:   [][]int16{{1}},
		startErr: fmt.Errorf("portal request: %w", ErrPermissionDenied),
	}
	stt := &fakeTranscriber{text: "ok"}
	p := newTestPipeline(t, rec, stt)

	err := p.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start error = %v, want ErrPermissionDenied", err)
	}
	if p.Phase() != PhaseIdle {
		t.Fatalf("phase = %v, want idle after denial", p.Phase())
	}

	// An explicit retry works once the user grants access.
	rec.startErr = nil
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := p.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
}

func TestPipeline_EmptyTranscriptionIsNoSpeech(t *testing.T) {
	rec := &fakeRecorder{chunks: [][]int16{{5}}}
	stt := &fakeTranscriber{text: "  \n"}
	p := newTestPipeline(t, rec, stt)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	_, err := p.Confirm(context.Background())
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Confirm error = %v, want ErrNoSpeech", err)
	}
	if p.Phase() != PhaseIdle {
		t.Errorf("phase = %v", p.Phase())
	}
	// Staging was consumed; there is nothing left to confirm.
	if _, err := p.Confirm(context.Background()); err == nil {
		t.Error("second Confirm succeeded on consumed staging")
	}
}

func TestPipeline_TranscribeFailureConsumesStaging(t *testing.T) {
	rec := &fakeRecorder{chunks: [][]int16{{5}}}
	stt := &fakeTranscriber{err: errors.New("service unavailable")}
	p := newTestPipeline(t, rec, stt)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := p.Confirm(context.Background()); err == nil {
		t.Fatal("Confirm succeeded despite transcriber failure")
	}
	if p.Phase() != PhaseIdle {
		t.Errorf("phase = %v", p.Phase())
	}
	if _, err := p.Confirm(context.Background()); err == nil {
		t.Error("second Confirm succeeded on consumed staging")
	}
}

func TestPipeline_StopFailureReturnsToIdle(t *testing.T) {
	rec := &fakeRecorder{
		chunks:  [][]int16{{1, 2, 3}},
		stopErr: errors.New("device wedged"),
	}
	stt := &fakeTranscriber{text: "ok"}
	p := newTestPipeline(t, rec, stt)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := p.Stop()
	if err == nil || !strings.Contains(err.Error(), "device wedged") {
		t.Fatalf("Stop error = %v", err)
	}
	if p.Phase() != PhaseIdle {
		t.Errorf("phase = %v, want idle", p.Phase())
	}
	if _, err := p.Confirm(context.Background()); err == nil {
		t.Error("Confirm succeeded after failed stop")
	}
}

func TestPipeline_Discard(t *testing.T) {
	rec := &fakeRecorder{chunks: [][]int16{{9}}}
	stt := &fakeTranscriber{text: "ok"}
	p := newTestPipeline(t, rec, stt)

	p.Discard() // no-op while idle
	if p.Phase() != PhaseIdle {
		t.Fatalf("phase = %v", p.Phase())
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	p.Discard()
	if p.Phase() != PhaseIdle {
		t.Errorf("phase after Discard = %v", p.Phase())
	}
	if _, err := p.Confirm(context.Background()); err == nil {
		t.Error("Confirm succeeded after Discard")
	}
	if stt.calls != 0 {
		t.Errorf("transcriber called %d times", stt.calls)
	}
}

func TestPipeline_RejectsOutOfOrderCalls(t *testing.T) {
	rec := &fakeRecorder{chunks: [][]int16{{1}}}
	p := newTestPipeline(t, rec, &fakeTranscriber{text: "ok"})

	if err := p.Stop(); err == nil {
		t.Error("Stop succeeded while idle")
	}
	if _, err := p.Confirm(context.Background()); err == nil {
		t.Error("Confirm succeeded while idle")
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("second Start succeeded while recording")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(); err == nil {
		t.Error("Stop succeeded with staged audio")
	}
	p.Discard()
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseRequestingPermission, "requesting permission"},
		{PhaseRecording, "recording"},
		{PhaseStoppedAwaitingConfirm, "awaiting confirm"},
		{PhaseTranscribing, "transcribing"},
		{Phase(42), "phase(42)"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.phase), got, tt.want)
		}
	}
}

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestFileRecorder_ReplaysInChunks(t *testing.T) {
	samples := make([]int16, fileChunkSamples*2+100)
	for i := range samples {
		samples[i] = int16(i % 500)
	}
	rec := NewFileRecorder(bytes.NewReader(pcmBytes(samples)))

	ch, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	var got []int16
	var sizes []int
	for chunk := range ch {
		sizes = append(sizes, len(chunk))
		got = append(got, chunk...)
	}
	rec.Stop()

	if len(sizes) != 3 || sizes[0] != fileChunkSamples || sizes[1] != fileChunkSamples || sizes[2] != 100 {
		t.Fatalf("chunk sizes = %v", sizes)
	}
	if len(got) != len(samples) {
		t.Fatalf("replayed %d samples, want %d", len(got), len(samples))
	}
	for i := range got {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestPipeline_WithFileRecorder(t *testing.T) {
	samples := []int16{120, -120, 340, -340}
	rec := NewFileRecorder(bytes.NewReader(pcmBytes(samples)))
	stt := &fakeTranscriber{text: "明天天气怎么样"}
	p := newTestPipeline(t, rec, stt)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The reader is EOF-bounded, so the chunk channel closes once the
	// collector has drained every sample. Waiting on the collector makes
	// the subsequent Stop deterministic.
	p.mu.Lock()
	done := p.collectDone
	p.mu.Unlock()
	<-done

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	text, err := p.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if text != "明天天气怎么样" {
		t.Errorf("text = %q", text)
	}
	if !bytes.Equal(stt.wav[44:], pcmBytes(samples)) {
		t.Errorf("transcribed payload does not match captured samples")
	}
}
