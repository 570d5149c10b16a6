package live

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
	PhaseDisconnected Phase = "disconnected"
)

const (
	senderSystem = "System"
	senderSelf   = "You"

	welcomeText = "Welcome to your NEIS session. Your practitioner will join shortly."
	replyText   = "Thank you for sharing that. How are you feeling about what we discussed?"
)

var ErrSessionEnded = errors.New("session already ended")

type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	System    bool      `json:"isSystem,omitempty"`
}

type Config struct {
	ConnectDelay     time.Duration
	ParticipantDelay time.Duration
	ReplyDelay       time.Duration
	Tick             time.Duration
	PractitionerName string
	ReplySender      string
}

func (c Config) withDefaults() Config {
	if c.ConnectDelay <= 0 {
		c.ConnectDelay = 2 * time.Second
	}
	if c.ParticipantDelay <= 0 {
		c.ParticipantDelay = 3 * time.Second
	}
	if c.ReplyDelay <= 0 {
		c.ReplyDelay = 2 * time.Second
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.PractitionerName == "" {
		c.PractitionerName = "Dr. Sarah Mitchell"
	}
	if c.ReplySender == "" {
		c.ReplySender = "Dr. Mitchell"
	}
	return c
}

// Controller drives one live session through
// connecting -> connected -> disconnected. Every scheduled callback is
// held as a cancellable handle so teardown never leaves a timer firing
// against disposed state.
type Controller struct {
	cfg Config

	mu                sync.Mutex
	phase             Phase
	participantJoined bool
	elapsed           int
	audioOn           bool
	videoOn           bool
	messages          []ChatMessage
	timers            []*time.Timer
	tickerStop        chan struct{}
	closed            bool
	lastActive        time.Time
}

type Snapshot struct {
	Phase             Phase         `json:"status"`
	ParticipantJoined bool          `json:"participantJoined"`
	ElapsedSeconds    int           `json:"sessionTime"`
	Duration          string        `json:"duration"`
	AudioEnabled      bool          `json:"audioEnabled"`
	VideoEnabled      bool          `json:"videoEnabled"`
	Messages          []ChatMessage `json:"messages"`
}

func NewController(cfg Config) *Controller {
	c := &Controller{
		cfg:        cfg.withDefaults(),
		phase:      PhaseConnecting,
		audioOn:    true,
		videoOn:    true,
		lastActive: time.Now(),
	}
	c.mu.Lock()
	c.appendLocked(senderSystem, welcomeText, true)
	c.scheduleLocked(c.cfg.ConnectDelay, c.connect)
	c.mu.Unlock()
	return c
}

// scheduleLocked registers a cancellable delayed callback. Callers hold mu.
func (c *Controller) scheduleLocked(d time.Duration, fn func()) {
	c.timers = append(c.timers, time.AfterFunc(d, fn))
}

func (c *Controller) connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase != PhaseConnecting {
		return
	}
	c.phase = PhaseConnected
	c.tickerStop = make(chan struct{})
	go c.runTimer(c.tickerStop)
	c.scheduleLocked(c.cfg.ParticipantDelay, c.participantJoin)
}

func (c *Controller) runTimer(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.phase == PhaseConnected {
				c.elapsed++
			}
			c.mu.Unlock()
		}
	}
}

func (c *Controller) participantJoin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase != PhaseConnected || c.participantJoined {
		return
	}
	c.participantJoined = true
	c.appendLocked(senderSystem, c.cfg.PractitionerName+" has joined the session.", true)
}

func (c *Controller) appendLocked(sender, text string, system bool) ChatMessage {
	msg := ChatMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
		System:    system,
	}
	c.messages = append(c.messages, msg)
	return msg
}

// Send appends a message from the local participant and schedules the
// simulated counterpart reply. Empty-after-trim input is a no-op.
func (c *Controller) Send(text string) (ChatMessage, bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ChatMessage{}, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase == PhaseDisconnected {
		return ChatMessage{}, false, ErrSessionEnded
	}
	msg := c.appendLocked(senderSelf, trimmed, false)
	c.lastActive = time.Now()
	c.scheduleLocked(c.cfg.ReplyDelay, c.reply)
	return msg, true, nil
}

func (c *Controller) reply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase == PhaseDisconnected {
		return
	}
	c.appendLocked(c.cfg.ReplySender, replyText, false)
}

// End terminates the session. The elapsed counter is frozen at its final
// value and no further transitions are possible.
func (c *Controller) End() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase == PhaseDisconnected {
		return c.elapsed, ErrSessionEnded
	}
	c.phase = PhaseDisconnected
	c.stopLocked()
	return c.elapsed, nil
}

// Close releases every pending scheduled callback without emitting state
// changes. It is the view-teardown path.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}

func (c *Controller) ToggleAudio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioOn = !c.audioOn
	c.lastActive = time.Now()
	return c.audioOn
}

func (c *Controller) ToggleVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoOn = !c.videoOn
	c.lastActive = time.Now()
	return c.videoOn
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]ChatMessage, len(c.messages))
	copy(messages, c.messages)
	return Snapshot{
		Phase:             c.phase,
		ParticipantJoined: c.participantJoined,
		ElapsedSeconds:    c.elapsed,
		Duration:          FormatDuration(c.elapsed),
		AudioEnabled:      c.audioOn,
		VideoEnabled:      c.videoOn,
		Messages:          messages,
	}
}

// FormatDuration renders elapsed seconds as zero-padded MM:SS.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
