// Package speech turns generated text into queued audio.
//
// The Pipeline is the producer side of the audio queue: it consumes a
// generation stream chunk by chunk, segments the text into speakable
// sentences, synthesizes each one, and enqueues the audio for playback.
// The first sentence starts playing while the model is still writing
// the rest of the response.
package speech

import (
	"context"
	"log/slog"
	"strings"

	"github.com/waifuisalie/Talking-Buddy/pkg/inference"
	"github.com/waifuisalie/Talking-Buddy/pkg/playback"
	"github.com/waifuisalie/Talking-Buddy/pkg/segment"
	"github.com/waifuisalie/Talking-Buddy/pkg/tts"
)

// Result reports what one spoken response produced.
type Result struct {
	// Text is the full accumulated response, exactly as generated.
	Text string

	// Sentences is the number of audio items enqueued.
	Sentences int

	// Skipped counts sentences dropped because synthesis failed.
	Skipped int
}

// Pipeline synthesizes responses sentence by sentence into a playback
// queue. One response is spoken at a time; the orchestrator serializes
// calls through its dispatch loop.
type Pipeline struct {
	synth   tts.Synthesizer
	queue   *playback.Queue
	segOpts []segment.Option
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSegmentOptions forwards options to the per-response segmenter.
func WithSegmentOptions(opts ...segment.Option) Option {
	return func(p *Pipeline) { p.segOpts = opts }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// NewPipeline creates a speech pipeline over the given synthesizer and
// playback queue.
func NewPipeline(synth tts.Synthesizer, queue *playback.Queue, opts ...Option) *Pipeline {
	p := &Pipeline{
		synth:  synth,
		queue:  queue,
		logger: slog.Default().With("component", "speech"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SpeakStream speaks a streaming response. It starts a playback
// session, enqueues sentences as the stream yields them, and signals
// generation-complete when the stream ends.
//
// A mid-stream error still signals generation-complete so the already
// queued sentences finish the session; the partial accumulated text is
// returned alongside the error.
func (p *Pipeline) SpeakStream(ctx context.Context, stream inference.Stream) (Result, error) {
	defer stream.Close()

	seg := segment.New(p.segOpts...)
	var res Result
	var full strings.Builder

	session := p.queue.StartSession()
	p.logger.Debug("speaking streamed response", "session_id", session)

	for {
		chunk, err := stream.Recv()
		if err != nil {
			p.queue.SignalGenerationComplete()
			res.Text = full.String()
			return res, err
		}

		if chunk.Delta != "" {
			full.WriteString(chunk.Delta)
			for _, sentence := range seg.Push(chunk.Delta) {
				p.speakSentence(ctx, sentence, &res)
			}
		}

		if chunk.Done {
			break
		}
	}

	if rest, ok := seg.Flush(); ok {
		p.speakSentence(ctx, rest, &res)
	}
	p.queue.SignalGenerationComplete()

	res.Text = full.String()
	p.logger.Info("response spoken",
		"chars", len(res.Text),
		"sentences", res.Sentences,
		"skipped", res.Skipped,
	)
	return res, nil
}

// Speak speaks a complete response string. The text is segmented the
// same way a stream would be so playback starts on the first sentence
// while the rest synthesizes.
func (p *Pipeline) Speak(ctx context.Context, text string) (Result, error) {
	seg := segment.New(p.segOpts...)
	var res Result

	session := p.queue.StartSession()
	p.logger.Debug("speaking response", "session_id", session, "chars", len(text))

	for _, sentence := range seg.Push(text) {
		p.speakSentence(ctx, sentence, &res)
	}
	if rest, ok := seg.Flush(); ok {
		p.speakSentence(ctx, rest, &res)
	}
	p.queue.SignalGenerationComplete()

	res.Text = text
	return res, nil
}

// speakSentence synthesizes one sentence and enqueues the audio.
// Failures skip the sentence so the rest of the response still plays.
func (p *Pipeline) speakSentence(ctx context.Context, sentence string, res *Result) {
	text := strings.TrimSpace(Clean(sentence))
	if text == "" {
		return
	}

	audio, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		res.Skipped++
		p.logger.Warn("sentence synthesis failed, skipping",
			"error", err,
			"chars", len(text),
		)
		return
	}

	p.queue.Enqueue(playback.Item{
		Text:    text,
		Path:    audio.Path,
		Cleanup: audio.Cleanup,
	})
	res.Sentences++
}
