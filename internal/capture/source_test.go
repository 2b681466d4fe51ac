package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

type fakePacer struct {
	mu       sync.Mutex
	chunk    time.Duration
	interval time.Duration
}

func (p *fakePacer) ChunkDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chunk
}

func (p *fakePacer) CaptureInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *fakePacer) setChunk(d time.Duration) {
	p.mu.Lock()
	p.chunk = d
	p.mu.Unlock()
}

type fakeStream struct {
	slices    [][]byte
	requested []time.Duration
	failWith  error
	stopped   int
}

func (s *fakeStream) ReadSlice(ctx context.Context, d time.Duration) ([]byte, error) {
	s.requested = append(s.requested, d)
	if s.failWith != nil {
		return nil, s.failWith
	}
	if len(s.slices) == 0 {
		return nil, io.EOF
	}
	next := s.slices[0]
	s.slices = s.slices[1:]
	return next, nil
}

func (s *fakeStream) Stop() error {
	s.stopped++
	return nil
}

type fakeMedia struct {
	stream *fakeStream
	err    error
	got    repositories.MediaConstraints
}

func (m *fakeMedia) Acquire(ctx context.Context, c repositories.MediaConstraints) (repositories.MediaStream, error) {
	m.got = c
	if m.err != nil {
		return nil, m.err
	}
	return m.stream, nil
}

func newTestSource(t *testing.T, media *fakeMedia, pacer *fakePacer) (*Source, *[]time.Duration) {
	s := NewSource(media, pacer, zaptest.NewLogger(t))
	var waits []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return ctx.Err() == nil
	}
	return s, &waits
}

func TestSource_OpenRequestsConstraints(t *testing.T) {
	media := &fakeMedia{stream: &fakeStream{}}
	s, _ := newTestSource(t, media, &fakePacer{chunk: 250 * time.Millisecond})

	if _, err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	want := repositories.MediaConstraints{SampleRate: 16000, ChannelCount: 1, EchoCancellation: true, NoiseSuppression: true}
	if media.got != want {
		t.Errorf("Expected constraints %+v, got %+v", want, media.got)
	}
}

func TestSource_OpenDenied(t *testing.T) {
	media := &fakeMedia{err: errors.New("permission dismissed")}
	s, _ := newTestSource(t, media, &fakePacer{})

	_, err := s.Open(context.Background())
	if !errors.Is(err, domain.ErrMediaAccessDenied) {
		t.Errorf("Expected ErrMediaAccessDenied, got %v", err)
	}
}

func TestStream_ChunkDurationReadPerSlice(t *testing.T) {
	stream := &fakeStream{slices: [][]byte{{1}, {2}, {3}}}
	pacer := &fakePacer{chunk: 250 * time.Millisecond, interval: 500 * time.Millisecond}
	s, _ := newTestSource(t, &fakeMedia{stream: stream}, pacer)

	st, err := s.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var got [][]byte
	for chunk, err := range st.Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected capture error: %v", err)
		}
		got = append(got, chunk)
		// A backoff lands between slices.
		pacer.setChunk(350 * time.Millisecond)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(got))
	}
	if stream.requested[0] != 250*time.Millisecond {
		t.Errorf("Expected first slice of 250ms, got %v", stream.requested[0])
	}
	if stream.requested[1] != 350*time.Millisecond {
		t.Errorf("Expected the next slice to use the widened 350ms, got %v", stream.requested[1])
	}
}

func TestStream_PacesByCaptureInterval(t *testing.T) {
	stream := &fakeStream{slices: [][]byte{{1}, {2}}}
	pacer := &fakePacer{chunk: 100 * time.Millisecond, interval: 2 * time.Second}
	s, waits := newTestSource(t, &fakeMedia{stream: stream}, pacer)

	st, _ := s.Open(context.Background())
	for range st.Chunks(context.Background()) {
	}

	if len(*waits) == 0 {
		t.Fatal("Expected the source to wait for the capture interval")
	}
	for _, w := range *waits {
		if w <= 0 || w > 2*time.Second {
			t.Errorf("Expected a wait within (0, 2s], got %v", w)
		}
	}
}

func TestStream_SkipsEmptySlices(t *testing.T) {
	stream := &fakeStream{slices: [][]byte{{}, {7}, nil}}
	s, _ := newTestSource(t, &fakeMedia{stream: stream}, &fakePacer{chunk: 100 * time.Millisecond})

	st, _ := s.Open(context.Background())
	var got int
	for range st.Chunks(context.Background()) {
		got++
	}

	if got != 1 {
		t.Errorf("Expected only the non-empty slice, got %d chunks", got)
	}
}

func TestStream_CaptureFailure(t *testing.T) {
	stream := &fakeStream{failWith: errors.New("device unplugged")}
	s, _ := newTestSource(t, &fakeMedia{stream: stream}, &fakePacer{chunk: 100 * time.Millisecond})

	st, _ := s.Open(context.Background())
	var errs int
	for _, err := range st.Chunks(context.Background()) {
		if err != nil {
			errs++
		}
	}

	if errs != 1 {
		t.Errorf("Expected exactly one capture error, got %d", errs)
	}
}

func TestStream_StopReleasesOnce(t *testing.T) {
	stream := &fakeStream{}
	s, _ := newTestSource(t, &fakeMedia{stream: stream}, &fakePacer{})

	st, _ := s.Open(context.Background())
	st.Stop()
	st.Stop()

	if stream.stopped != 1 {
		t.Errorf("Expected the device to be released once, got %d", stream.stopped)
	}
}

func TestStream_CancelledContextYieldsNothing(t *testing.T) {
	stream := &fakeStream{slices: [][]byte{{1}}}
	s, _ := newTestSource(t, &fakeMedia{stream: stream}, &fakePacer{chunk: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, _ := s.Open(context.Background())
	for range st.Chunks(ctx) {
		t.Fatal("Expected no chunks after cancellation")
	}
}
