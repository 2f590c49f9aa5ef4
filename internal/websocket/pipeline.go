package websocket

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreysen/voicelink/domain/entities"
	"github.com/dreysen/voicelink/domain/repositories"
	"github.com/dreysen/voicelink/internal/metrics"
	"github.com/dreysen/voicelink/internal/protocol"
	"github.com/dreysen/voicelink/internal/wav"
)

// ErrQueueFull is returned by Submit when the pipeline's job queue is at
// capacity. The caller reports this to the client and drops the unit.
var ErrQueueFull = errors.New("pipeline job queue full")

// Job is one unit of work for the pipeline: either a drained audio unit or
// a typed text input. Exactly one of the two is set.
type Job struct {
	Audio *AudioUnit
	Text  string
}

// Pipeline sequences Transcription → ResponseGeneration → Synthesis for one
// session. Jobs are processed strictly in submission order by a single worker
// goroutine, so at most one run is ever in flight per session and results are
// emitted in the order their units were drained.
//
// A stage failure is contained to its turn: transcription or generation
// failures emit an error message and abort the run without touching the
// conversation history; a synthesis failure degrades the turn to text-only.
type Pipeline struct {
	stt repositories.SpeechToText
	llm repositories.LargeLanguageModel
	tts repositories.TextToSpeech

	session      *entities.Session
	audioConfig  repositories.AudioConfig
	stageTimeout time.Duration

	// emit hands a wire message to the session's write path. It must never
	// block the worker indefinitely.
	emit func(msg interface{})

	jobs      chan Job
	closeOnce sync.Once
	wg        sync.WaitGroup

	logger *zap.Logger
	stats  *metrics.Metrics
}

// PipelineConfig wires a Pipeline to its session and collaborators.
type PipelineConfig struct {
	STT          repositories.SpeechToText
	LLM          repositories.LargeLanguageModel
	TTS          repositories.TextToSpeech
	Session      *entities.Session
	AudioConfig  repositories.AudioConfig
	StageTimeout time.Duration
	QueueSize    int
	Emit         func(msg interface{})
	Logger       *zap.Logger
	Stats        *metrics.Metrics
}

// NewPipeline creates a Pipeline. Call Start to begin processing and Close
// to stop the worker once the session ends.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 8
	}
	stageTimeout := cfg.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = 30 * time.Second
	}
	return &Pipeline{
		stt:          cfg.STT,
		llm:          cfg.LLM,
		tts:          cfg.TTS,
		session:      cfg.Session,
		audioConfig:  cfg.AudioConfig,
		stageTimeout: stageTimeout,
		emit:         cfg.Emit,
		jobs:         make(chan Job, queueSize),
		logger:       cfg.Logger,
		stats:        cfg.Stats,
	}
}

// Start launches the worker goroutine.
func (p *Pipeline) Start() {
	p.wg.Add(1)
	go p.worker()
}

// Submit queues a job without blocking the caller. Returns ErrQueueFull when
// the queue is at capacity.
func (p *Pipeline) Submit(job Job) error {
	select {
	case p.jobs <- job:
		if p.stats != nil {
			p.stats.PipelineQueueDepth.Set(float64(len(p.jobs)))
		}
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for the worker to finish the jobs
// already queued. Safe to call more than once.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

// run executes one pipeline invocation: Transcribing → Generating →
// Synthesizing, with each stage bounded by the configured timeout.
func (p *Pipeline) run(job Job) {
	start := time.Now()
	if p.stats != nil {
		p.stats.PipelineRuns.Inc()
	}

	text := job.Text

	// Stage 1: transcription, only for audio jobs.
	if job.Audio != nil {
		transcribed, err := p.transcribe(job.Audio)
		if err != nil {
			p.logger.Error("Transcription failed",
				zap.String("sessionID", p.session.ID),
				zap.Error(err))
			p.stageFailed("transcription")
			p.emit(protocol.NewError(protocol.ErrCodeTranscriptionFailed, "failed to transcribe audio"))
			return
		}
		text = transcribed
		p.emit(protocol.NewTranscription(text))
	}

	// Stage 2: response generation against the session's history.
	reply, err := p.generate(text)
	if err != nil {
		p.logger.Error("Response generation failed",
			zap.String("sessionID", p.session.ID),
			zap.Error(err))
		p.stageFailed("generation")
		p.emit(protocol.NewError(protocol.ErrCodeGenerationFailed, "AI response failed"))
		return
	}

	// The turn succeeded as a conversation; record it before synthesis so a
	// synthesis failure still leaves the exchange in history.
	p.session.AddTurn(text, reply)

	// Stage 3: synthesis. Failure degrades the turn to text-only.
	sampleRate, pcm, err := p.synthesize(reply)
	elapsed := time.Since(start)
	if p.stats != nil {
		p.stats.RunDuration.Observe(elapsed.Seconds())
	}
	if err != nil {
		p.logger.Warn("Synthesis failed, sending text-only response",
			zap.String("sessionID", p.session.ID),
			zap.Error(err))
		p.stageFailed("synthesis")
		p.emit(protocol.NewResponse(reply, nil, elapsed.Seconds()))
		return
	}

	encoded := base64.StdEncoding.EncodeToString(wav.Encode(sampleRate, pcm))
	p.emit(protocol.NewResponse(reply, &encoded, elapsed.Seconds()))

	p.logger.Info("Pipeline run completed",
		zap.String("sessionID", p.session.ID),
		zap.Duration("elapsed", elapsed),
		zap.Int("audioBytes", len(pcm)))
}

func (p *Pipeline) transcribe(unit *AudioUnit) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.stageTimeout)
	defer cancel()
	config := p.audioConfig
	config.SampleRate = unit.SampleRate
	return p.stt.TranscribeAudio(ctx, unit.PCM, config)
}

func (p *Pipeline) generate(text string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.stageTimeout)
	defer cancel()
	return p.llm.GenerateReply(ctx, text, p.session.History())
}

func (p *Pipeline) synthesize(text string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.stageTimeout)
	defer cancel()
	return p.tts.Synthesize(ctx, text)
}

func (p *Pipeline) stageFailed(stage string) {
	if p.stats != nil {
		p.stats.StageFailures.WithLabelValues(stage).Inc()
	}
}
