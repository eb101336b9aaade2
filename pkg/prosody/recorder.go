package prosody

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-affect/pkg/audioio"
)

var (
	// ErrNotRecording is returned when audio is fed outside a session.
	ErrNotRecording = errors.New("prosody: not recording")

	// ErrAlreadyRecording is returned when Start is called twice.
	ErrAlreadyRecording = errors.New("prosody: already recording")
)

// Session describes one recording session.
type Session struct {
	ID      string        `json:"id"`
	Started time.Time     `json:"started"`
	Stopped time.Time     `json:"stopped,omitempty"`
	Buffers int           `json:"buffers"`
	Samples int           `json:"samples"`
	Audio   time.Duration `json:"audio"` // captured audio length
}

// Recorder runs one voice session at a time.
//
// Capture hands buffers to an accumulator goroutine over a channel; only that
// goroutine appends to the feature series. Stop waits for the accumulator to
// drain the queue and exit before classifying, so the series is never read
// while it can still grow. A Feed that races Stop is discarded unanalyzed.
//
// Cancelling the Start context closes the session to new audio but keeps
// what was already queued; the session still ends with Stop.
type Recorder struct {
	cfg        Config
	analyzer   FrameAnalyzer
	classifier Classifier
	logger     *slog.Logger

	mu        sync.Mutex
	recording bool
	frames    chan []float64
	stop      chan struct{}
	closed    chan struct{} // closed when the Start context ends
	done      chan struct{}
	series    *FeatureSeries
	session   Session
	last      *Result
}

// NewRecorder creates an idle recorder. An invalid config falls back to
// DefaultConfig.
func NewRecorder(cfg Config, logger *slog.Logger) *Recorder {
	if err := cfg.Validate(); err != nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:        cfg,
		analyzer:   cfg.Analyzer(),
		classifier: NewClassifier(),
		logger:     logger,
		series:     &FeatureSeries{},
	}
}

// Start opens a new session with an empty series.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}

	r.recording = true
	r.frames = make(chan []float64, r.cfg.QueueSize)
	r.stop = make(chan struct{})
	r.closed = make(chan struct{})
	r.done = make(chan struct{})
	r.series = &FeatureSeries{}
	r.session = Session{ID: uuid.New().String(), Started: time.Now()}

	go r.accumulate(ctx, r.frames, r.stop, r.closed, r.done, r.series, &r.session)

	r.logger.Debug("voice session started", "session", r.session.ID)
	return nil
}

func (r *Recorder) accumulate(ctx context.Context, frames <-chan []float64, stop, closed, done chan struct{}, series *FeatureSeries, sess *Session) {
	defer close(done)

	add := func(buf []float64) {
		// features are undefined below two samples
		if len(buf) < 2 {
			return
		}
		series.Append(r.analyzer.Analyze(buf))
		sess.Buffers++
		sess.Samples += len(buf)
	}

	cancelled := ctx.Done()
	for {
		select {
		case <-stop:
			// analyze what was queued before Stop, then hand over the series
			for {
				select {
				case buf := <-frames:
					add(buf)
				default:
					return
				}
			}
		case <-cancelled:
			close(closed)
			cancelled = nil
		case buf := <-frames:
			add(buf)
		}
	}
}

// Feed queues one mono buffer of samples in [-1, 1]. It blocks while the
// queue is full and returns ErrNotRecording outside a session or once the
// Start context is done. Buffers shorter than two samples are accepted and
// ignored.
func (r *Recorder) Feed(samples []float64) error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return ErrNotRecording
	}
	frames, stop, closed := r.frames, r.stop, r.closed
	r.mu.Unlock()

	select {
	case <-stop:
		return ErrNotRecording
	case <-closed:
		return ErrNotRecording
	case frames <- samples:
		return nil
	}
}

// FeedPCM16 queues one mono buffer of int16 samples.
func (r *Recorder) FeedPCM16(samples []int16) error {
	return r.Feed(PCM16ToFloat(samples))
}

// Capture feeds every chunk from a started source until the source closes,
// ctx is cancelled or the session stops. Multi-channel chunks are down-mixed.
func (r *Recorder) Capture(ctx context.Context, src audioio.Source) error {
	stream := src.Stream()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				return nil
			}
			if err := r.FeedPCM16(audioio.ToMono(chunk)); err != nil {
				if errors.Is(err, ErrNotRecording) {
					return nil
				}
				return err
			}
		}
	}
}

// Stop ends the session and classifies it. It reports false when nothing
// was recorded or no session was active.
func (r *Recorder) Stop() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return Result{}, false
	}
	r.recording = false
	close(r.stop)
	<-r.done

	r.session.Stopped = time.Now()
	r.session.Audio = time.Duration(float64(r.session.Samples) / float64(r.cfg.SampleRate) * float64(time.Second))

	res, ok := r.classifier.Classify(r.series)
	if !ok {
		r.logger.Debug("voice session empty", "session", r.session.ID)
		return Result{}, false
	}
	r.last = &res

	r.logger.Info("voice session classified",
		"session", r.session.ID,
		"label", res.Label,
		"buffers", r.session.Buffers,
		"pitch_mean", res.Stats.Pitch.Mean,
		"intensity_mean", res.Stats.Intensity.Mean,
	)
	return res, true
}

// Reset stops any active session and clears the series and last result.
func (r *Recorder) Reset() {
	r.mu.Lock()
	if r.recording {
		r.recording = false
		close(r.stop)
		<-r.done
	}
	r.series = &FeatureSeries{}
	r.session = Session{}
	r.last = nil
	r.mu.Unlock()
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Last returns the most recent classification, if any.
func (r *Recorder) Last() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// Session returns the current or most recent session. During recording the
// counters are not yet settled and read as zero.
func (r *Recorder) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return Session{ID: r.session.ID, Started: r.session.Started}
	}
	return r.session
}
