// Package sound plays short audible cues when a macro turns on or off.
package sound

import (
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"golang.org/x/time/rate"
)

// SampleRate is the rate the speaker is opened with.
const SampleRate beep.SampleRate = 44100

// Cue files looked up in the assets. Missing files fall back to tones.
const (
	CueOn  = "assets/cue_on.ogg"
	CueOff = "assets/cue_off.ogg"
)

const toneLength = 90 * time.Millisecond

// Player plays a stream.
type Player interface {
	Play(s beep.Streamer)
}

type speakerPlayer struct{ mu sync.Mutex }

func (p *speakerPlayer) Play(s beep.Streamer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	speaker.Play(s)
}

// Speaker opens the default audio device.
func Speaker() (Player, error) {
	if err := speaker.Init(SampleRate, SampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &speakerPlayer{}, nil
}

// Cues is a status sink that plays one cue per change.
type Cues struct {
	player  Player
	limiter *rate.Limiter
	log     *slog.Logger

	on, off *beep.Buffer
}

// Option configures Cues.
type Option func(*Cues)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cues) { c.log = l }
}

// WithLimit bounds how many cues may play per interval.
func WithLimit(every time.Duration, burst int) Option {
	return func(c *Cues) { c.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

// New loads the cues from assets and plays them on p.
func New(assets fs.FS, p Player, opts ...Option) *Cues {
	c := &Cues{
		player:  p,
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "sound")
	c.on = c.load(assets, CueOn, 660, 880)
	c.off = c.load(assets, CueOff, 880, 440)
	return c
}

func (c *Cues) load(assets fs.FS, name string, freqs ...float64) *beep.Buffer {
	if assets != nil {
		b, err := decode(assets, name)
		if err == nil {
			c.log.Debug("loaded cue", "file", name)
			return b
		}
		c.log.Debug("cue file unavailable, using tone", "file", name, "err", err)
	}
	b, err := tones(freqs...)
	if err != nil {
		c.log.Warn("failed to build cue", "err", err)
		return nil
	}
	return b
}

func decode(assets fs.FS, name string) (*beep.Buffer, error) {
	f, err := assets.Open(name)
	if err != nil {
		return nil, err
	}
	streamer, format, err := vorbis.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	defer streamer.Close()
	b := beep.NewBuffer(format)
	b.Append(streamer)
	return b, nil
}

// tones renders one short sine tone per frequency, back to back.
func tones(freqs ...float64) (*beep.Buffer, error) {
	b := beep.NewBuffer(beep.Format{SampleRate: SampleRate, NumChannels: 2, Precision: 2})
	for _, f := range freqs {
		tone, err := generators.SineTone(SampleRate, f)
		if err != nil {
			return nil, err
		}
		b.Append(beep.Take(SampleRate.N(toneLength), tone))
	}
	return b, nil
}

// MacroStatus implements status.Notifier.
func (c *Cues) MacroStatus(macro int, active bool) {
	b := c.off
	if active {
		b = c.on
	}
	if b == nil || c.player == nil {
		return
	}
	if !c.limiter.Allow() {
		c.log.Debug("cue rate exceeded, skipping", "macro", macro)
		return
	}
	c.player.Play(b.Streamer(0, b.Len()))
}
