package speech

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"quizbowl-practice/internal/clock"
	"quizbowl-practice/internal/domain"
)

const (
	DefaultWordsPerMinute = 180
	DefaultSynthTimeout   = 30 * time.Second

	MinRate = 0.25
	MaxRate = 4.0
)

// Progress reports how much of the active text has been spoken.
type Progress struct {
	Offset int
	Spoken string
}

// Handlers receive asynchronous driver events. They run with the driver's
// Locker held, so they must not try to take it again.
type Handlers struct {
	OnStart    func(clip domain.Clip)
	OnProgress func(p Progress)
	OnEnd      func()
	OnError    func(err error)
}

// Options tunes pacing and synthesis limits. Zero values use defaults.
type Options struct {
	WordsPerMinute int
	SynthTimeout   time.Duration
}

// Driver paces playback of one text at a time.
//
// Driver is not safe for concurrent use on its own: callers must hold the
// Locker given to NewDriver around every method call. The driver takes the
// same Locker around its timer and synthesis callbacks, which gives the owner
// a single event loop.
type Driver struct {
	synth    Synthesizer
	clock    clock.Clock
	mu       sync.Locker
	handlers Handlers
	wpm      int
	timeout  time.Duration

	state      domain.PlaybackState
	loading    bool
	holdPaused bool
	text       string
	boundaries []int
	next       int
	offset     int
	rate       float64
	clip       *domain.Clip
	seq        int

	gen    int
	tickID int
	timer  clock.Timer
	cancel context.CancelFunc
}

func NewDriver(synth Synthesizer, clk clock.Clock, mu sync.Locker, handlers Handlers, opts Options) *Driver {
	if clk == nil {
		clk = clock.Real()
	}
	if mu == nil {
		mu = &sync.Mutex{}
	}
	wpm := opts.WordsPerMinute
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	timeout := opts.SynthTimeout
	if timeout <= 0 {
		timeout = DefaultSynthTimeout
	}
	return &Driver{
		synth:    synth,
		clock:    clk,
		mu:       mu,
		handlers: handlers,
		wpm:      wpm,
		timeout:  timeout,
		state:    domain.PlaybackIdle,
		rate:     1,
	}
}

// Speak begins playback of text from the start.
func (d *Driver) Speak(text string, voice *domain.Voice, rate float64) error {
	return d.SpeakFrom(text, voice, rate, 0)
}

// SpeakFrom begins playback at offset. Only the remainder is synthesized;
// progress offsets stay relative to the full text.
func (d *Driver) SpeakFrom(text string, voice *domain.Voice, rate float64, offset int) error {
	if d.synth == nil {
		return ErrNoSynthesizer
	}
	offset = ClampOffset(text, offset)
	if strings.TrimSpace(text[offset:]) == "" {
		return ErrEmptyText
	}

	d.halt()
	d.gen++
	gen := d.gen

	d.text = text
	d.boundaries = Boundaries(text)
	d.offset = offset
	d.next = sort.SearchInts(d.boundaries, offset+1)
	d.rate = NormalizeRate(rate)
	d.loading = true
	d.holdPaused = false
	d.state = domain.PlaybackIdle

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	d.cancel = cancel
	req := Request{Text: text[offset:], Voice: voice, Rate: d.rate}
	go d.synthesize(ctx, gen, req, offset)
	return nil
}

func (d *Driver) synthesize(ctx context.Context, gen int, req Request, offset int) {
	audio, err := d.synth.Synthesize(ctx, req)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loading = false
	if err != nil {
		d.state = domain.PlaybackIdle
		log.Printf("speech synthesis failed: %v", err)
		if d.handlers.OnError != nil {
			d.handlers.OnError(fmt.Errorf("%w: %v", ErrSynthesis, err))
		}
		return
	}

	d.seq++
	clip := domain.Clip{
		Seq:         d.seq,
		Encoding:    audio.Encoding,
		Content:     audio.Content,
		Text:        req.Text,
		StartOffset: offset,
		Rate:        req.Rate,
	}
	if req.Voice != nil {
		clip.Voice = req.Voice.Name
	}
	d.clip = &clip

	if d.holdPaused {
		d.holdPaused = false
		d.state = domain.PlaybackPaused
	} else {
		d.state = domain.PlaybackSpeaking
		d.schedule()
	}
	if d.handlers.OnStart != nil {
		d.handlers.OnStart(clip)
	}
}

// Pause suspends playback without losing position. It reports whether
// anything changed.
func (d *Driver) Pause() bool {
	if d.loading {
		if d.holdPaused {
			return false
		}
		d.holdPaused = true
		return true
	}
	if d.state != domain.PlaybackSpeaking {
		return false
	}
	d.stopTimer()
	d.state = domain.PlaybackPaused
	return true
}

// Resume continues from the paused position.
func (d *Driver) Resume() bool {
	if d.loading {
		if !d.holdPaused {
			return false
		}
		d.holdPaused = false
		return true
	}
	if d.state != domain.PlaybackPaused {
		return false
	}
	d.state = domain.PlaybackSpeaking
	d.schedule()
	return true
}

// Stop halts playback and discards position.
func (d *Driver) Stop() {
	d.halt()
	d.gen++
	d.state = domain.PlaybackIdle
	d.loading = false
	d.holdPaused = false
	d.offset = 0
	d.next = 0
	d.clip = nil
}

// Fail stops playback after an external synthesis error but keeps the offset
// so a later SpeakFrom can pick up where the voice broke off.
func (d *Driver) Fail() {
	d.halt()
	d.gen++
	d.state = domain.PlaybackIdle
	d.loading = false
	d.holdPaused = false
	d.clip = nil
}

// Paused reports a paused clip or a pending request that will load paused.
func (d *Driver) Paused() bool {
	return d.state == domain.PlaybackPaused || (d.loading && d.holdPaused)
}

func (d *Driver) State() domain.PlaybackState { return d.state }
func (d *Driver) Loading() bool               { return d.loading }
func (d *Driver) Offset() int                 { return d.offset }
func (d *Driver) Rate() float64               { return d.rate }

// Spoken returns the consumed prefix of the active text.
func (d *Driver) Spoken() string { return d.text[:d.offset] }

// Clip returns the clip currently playing, if any.
func (d *Driver) Clip() *domain.Clip {
	if d.clip == nil {
		return nil
	}
	c := *d.clip
	return &c
}

func (d *Driver) interval() time.Duration {
	return time.Duration(float64(time.Minute) / (float64(d.wpm) * d.rate))
}

func (d *Driver) schedule() {
	d.stopTimer()
	d.tickID++
	id := d.tickID
	d.timer = d.clock.AfterFunc(d.interval(), func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.tick(id)
	})
}

func (d *Driver) tick(id int) {
	if id != d.tickID || d.state != domain.PlaybackSpeaking {
		return
	}
	d.timer = nil
	if d.next >= len(d.boundaries) {
		d.finish()
		return
	}
	d.offset = d.boundaries[d.next]
	d.next++
	if d.handlers.OnProgress != nil {
		d.handlers.OnProgress(Progress{Offset: d.offset, Spoken: d.text[:d.offset]})
	}
	if d.offset >= len(d.text) {
		d.finish()
		return
	}
	d.schedule()
}

func (d *Driver) finish() {
	d.state = domain.PlaybackIdle
	d.clip = nil
	if d.handlers.OnEnd != nil {
		d.handlers.OnEnd()
	}
}

func (d *Driver) stopTimer() {
	d.tickID++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Driver) halt() {
	d.stopTimer()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Boundaries returns the offsets at which progress is reported: the start of
// every word after the first, then len(text).
func Boundaries(text string) []int {
	var out []int
	inWord := false
	seenWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			if seenWord {
				out = append(out, i)
			}
			seenWord = true
			inWord = true
		}
	}
	if len(text) > 0 {
		out = append(out, len(text))
	}
	return out
}

// ClampOffset bounds offset to [0, len(text)] and moves it back onto a rune start.
func ClampOffset(text string, offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset >= len(text) {
		return len(text)
	}
	for offset > 0 && !utf8.RuneStart(text[offset]) {
		offset--
	}
	return offset
}

// NormalizeRate maps 0 to 1 and clamps to the range providers accept.
func NormalizeRate(rate float64) float64 {
	switch {
	case rate == 0:
		return 1
	case rate < MinRate:
		return MinRate
	case rate > MaxRate:
		return MaxRate
	}
	return rate
}
