// Package session owns conversation identity and message buffers for the
// live chat surface: the live (optimistic) buffer, the per-conversation
// history cache, and the transitions between them.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsdesk/opsdesk/internal/logging"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat transcript entry.
type Message struct {
	ID        string
	Role      string
	Content   string
	Timestamp time.Time
	ImageURL  string
	IssueType string
}

// State is the controller's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateBootstrapping
	StateLive
	StateBrowsingHistory
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBootstrapping:
		return "bootstrapping"
	case StateLive:
		return "live"
	case StateBrowsingHistory:
		return "browsing-history"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// HistoryStatus describes what the cache knows about one conversation.
// Ready with zero messages means confirmed empty; Unavailable means the
// fetch failed and nothing could be confirmed.
type HistoryStatus int

const (
	HistoryMissing HistoryStatus = iota
	HistoryReady
	HistoryUnavailable
)

// Sender delivers a chat message and returns the assistant's reply.
type Sender interface {
	SendChat(ctx context.Context, conversationID, text, imageBase64 string) (Message, error)
}

// HistoryFetcher loads a conversation's transcript.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, conversationID string) ([]Message, error)
}

// Controller errors.
var (
	ErrSendInFlight  = errors.New("a chat send is already in flight")
	ErrFetchInFlight = errors.New("a history fetch for this conversation is already in flight")
	ErrNotCached     = errors.New("conversation history is not cached")
	ErrNotLive       = errors.New("no live session is active")
)

// Controller is the single owner of the active conversation id and both
// message buffers. All methods are meant for a single cooperative caller;
// there is no internal locking.
type Controller struct {
	state    State
	activeID string

	live        []Message
	cache       map[string][]Message
	unavailable map[string]bool

	sendInFlight  bool
	fetchInFlight map[string]bool

	log zerolog.Logger
}

// NewController creates an idle controller with empty buffers.
func NewController() *Controller {
	return &Controller{
		state:         StateIdle,
		cache:         make(map[string][]Message),
		unavailable:   make(map[string]bool),
		fetchInFlight: make(map[string]bool),
		log:           logging.Component("session"),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// ActiveConversationID returns the conversation the live buffer belongs to.
func (c *Controller) ActiveConversationID() string { return c.activeID }

// Live returns a copy of the live message buffer.
func (c *Controller) Live() []Message {
	return append([]Message(nil), c.live...)
}

// Bootstrap establishes the initial live session. With a conversation id it
// fetches that transcript into the live buffer; with an empty id, or when
// the fetch fails, it falls back to a fresh session so the console always
// comes up usable.
func (c *Controller) Bootstrap(ctx context.Context, fetcher HistoryFetcher, conversationID string) error {
	c.BeginHistoryBootstrap()

	if conversationID == "" {
		c.NewSession()
		return nil
	}

	messages, err := fetcher.FetchHistory(ctx, conversationID)
	c.CompleteHistoryBootstrap(conversationID, messages, err)
	return err
}

// BeginHistoryBootstrap marks the controller as bootstrapping while a
// caller fetches the requested transcript off the UI loop.
func (c *Controller) BeginHistoryBootstrap() {
	c.state = StateBootstrapping
}

// CompleteHistoryBootstrap installs a fetched transcript as the live
// session, or falls back to a fresh session when the fetch failed, so the
// console always comes up usable.
func (c *Controller) CompleteHistoryBootstrap(conversationID string, messages []Message, fetchErr error) {
	if fetchErr != nil {
		c.log.Warn().Str("conversation_id", conversationID).Err(fetchErr).
			Msg("bootstrap fetch failed, starting fresh session")
		c.NewSession()
		return
	}
	c.activeID = conversationID
	c.live = append([]Message(nil), messages...)
	c.state = StateLive
}

// BeginSend appends the user's message to the live buffer and marks the
// send in flight. The optimistic append happens before any network
// activity, so the UI is always at least as current as the backend.
func (c *Controller) BeginSend(text, imageBase64 string) (Message, error) {
	if c.state != StateLive {
		return Message{}, ErrNotLive
	}
	if c.sendInFlight {
		return Message{}, ErrSendInFlight
	}
	c.sendInFlight = true

	userMsg := Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
		ImageURL:  imageBase64,
	}
	c.live = append(c.live, userMsg)
	return userMsg, nil
}

// CompleteSend folds the delivery result into the live buffer. On failure
// a synthetic assistant error message is appended after the user's
// message, which is never rolled back: the transcript stays honest about
// what was sent.
func (c *Controller) CompleteSend(reply Message, sendErr error) Message {
	c.sendInFlight = false

	if sendErr != nil {
		errMsg := Message{
			ID:        uuid.New().String(),
			Role:      RoleAssistant,
			Content:   fmt.Sprintf("Sorry, I couldn't reach the backend: %v", sendErr),
			Timestamp: time.Now(),
		}
		c.live = append(c.live, errMsg)
		return errMsg
	}

	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now()
	}
	reply.Role = RoleAssistant
	c.live = append(c.live, reply)
	return reply
}

// SendInFlight reports whether a chat send is outstanding.
func (c *Controller) SendInFlight() bool { return c.sendInFlight }

// Send delivers a message synchronously: optimistic append, network call,
// result fold. Cooperative callers that cannot block (the TUI) use
// BeginSend and CompleteSend around their own delivery instead.
func (c *Controller) Send(ctx context.Context, sender Sender, text, imageBase64 string) (Message, error) {
	if _, err := c.BeginSend(text, imageBase64); err != nil {
		return Message{}, err
	}
	reply, err := sender.SendChat(ctx, c.activeID, text, imageBase64)
	appended := c.CompleteSend(reply, err)
	return appended, err
}

// BeginHistoryFetch marks a history fetch in flight and moves the
// controller into history browsing.
func (c *Controller) BeginHistoryFetch(conversationID string) error {
	if c.fetchInFlight[conversationID] {
		return ErrFetchInFlight
	}
	c.fetchInFlight[conversationID] = true
	c.state = StateBrowsingHistory
	return nil
}

// CompleteHistoryFetch stores a fetched transcript, or marks the
// conversation unavailable on failure. A failed fetch never clears a
// previously cached transcript.
func (c *Controller) CompleteHistoryFetch(conversationID string, messages []Message, fetchErr error) {
	delete(c.fetchInFlight, conversationID)

	if fetchErr != nil {
		c.unavailable[conversationID] = true
		c.log.Warn().Str("conversation_id", conversationID).Err(fetchErr).Msg("history fetch failed")
		return
	}

	if messages == nil {
		messages = []Message{}
	}
	c.cache[conversationID] = messages
	delete(c.unavailable, conversationID)
}

// LoadHistory fetches one conversation's transcript into the history
// cache synchronously, independent of the live buffer.
func (c *Controller) LoadHistory(ctx context.Context, fetcher HistoryFetcher, conversationID string) error {
	if err := c.BeginHistoryFetch(conversationID); err != nil {
		return err
	}
	messages, err := fetcher.FetchHistory(ctx, conversationID)
	c.CompleteHistoryFetch(conversationID, messages, err)
	return err
}

// History returns the cached transcript for a conversation and its status.
func (c *Controller) History(conversationID string) ([]Message, HistoryStatus) {
	if cached, ok := c.cache[conversationID]; ok {
		return append([]Message(nil), cached...), HistoryReady
	}
	if c.unavailable[conversationID] {
		return nil, HistoryUnavailable
	}
	return nil, HistoryMissing
}

// Continue reopens a cached conversation as the live session. The cached
// transcript is copied, not aliased, so later live sends never mutate the
// cache snapshot.
func (c *Controller) Continue(conversationID string) error {
	cached, ok := c.cache[conversationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCached, conversationID)
	}
	c.live = append([]Message(nil), cached...)
	c.activeID = conversationID
	c.state = StateLive
	c.log.Info().Str("conversation_id", conversationID).Msg("continuing conversation")
	return nil
}

// ResumeLive returns from history browsing to the live session without
// touching either buffer.
func (c *Controller) ResumeLive() error {
	if c.activeID == "" {
		return ErrNotLive
	}
	c.state = StateLive
	return nil
}

// NewSession starts a fresh conversation with an empty live buffer and a
// previously unused id. The history cache is untouched.
func (c *Controller) NewSession() string {
	id := uuid.New().String()
	c.activeID = id
	c.live = nil
	c.state = StateLive
	c.log.Info().Str("conversation_id", id).Msg("new session")
	return id
}
