// Package memory holds the in-process conversation sessions for the chat
// workflow. All state lives in one mutex-guarded map; nothing is durable.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estctiger/estctiger/models"
)

// Token budget for rendered history. 4000 tokens at ~200 tokens per
// exchange caps a session at 20 stored exchanges.
const (
	maxConversationTokens = 4000
	avgTokensPerExchange  = 200
	maxResponsePreview    = 300
)

type session struct {
	createdAt      time.Time
	lastAccessed   time.Time
	history        []models.Exchange
	priceMentioned bool
}

// Store manages conversation sessions with TTL expiry and LRU capacity
// eviction. Operations are O(1) except the sweep triggered on creation.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*session
	maxSessions int
	timeout     time.Duration
	logger      *zap.Logger

	now func() time.Time
}

// NewStore builds a session store. maxSessions and timeout follow the
// configured limits (defaults: 1000 sessions, 24h).
func NewStore(maxSessions int, timeout time.Duration, logger *zap.Logger) *Store {
	return &Store{
		sessions:    make(map[string]*session),
		maxSessions: maxSessions,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}
}

// GetOrCreate returns the given session id after refreshing its access
// time, or mints a new session when the id is empty or unknown. Creation
// triggers the expiry/capacity sweep.
func (s *Store) GetOrCreate(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if sess, ok := s.sessions[sessionID]; ok {
			sess.lastAccessed = s.now()
			return sessionID
		}
	}

	newID := uuid.NewString()
	s.sessions[newID] = &session{
		createdAt:    s.now(),
		lastAccessed: s.now(),
	}
	s.sweepLocked()
	return newID
}

// AddExchange appends one completed question/answer pair to the session,
// creating it if needed, then trims oldest entries past the token budget.
func (s *Store) AddExchange(sessionID, userQuery, assistantResponse string, calls []models.RetrievalCall) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{createdAt: s.now()}
		s.sessions[sessionID] = sess
	}

	sess.history = append(sess.history, models.Exchange{
		Timestamp:         s.now(),
		UserQuery:         userQuery,
		AssistantResponse: assistantResponse,
		Calls:             calls,
	})
	sess.lastAccessed = s.now()

	maxExchanges := maxConversationTokens / avgTokensPerExchange
	if len(sess.history) > maxExchanges {
		sess.history = sess.history[len(sess.history)-maxExchanges:]
		s.logger.Debug("trimmed conversation history",
			zap.String("session_id", sessionID),
			zap.Int("kept", maxExchanges))
	}
}

// History returns a copy of the session's exchanges, oldest first.
func (s *Store) History(sessionID string) []models.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]models.Exchange, len(sess.history))
	copy(out, sess.history)
	return out
}

// ContextForPrompt renders the session's prior exchanges as a labeled
// transcript for the model prompt. Responses are truncated to 300
// characters. Returns "" when the session has no history.
func (s *Store) ContextForPrompt(sessionID string) string {
	history := s.History(sessionID)
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nPREVIOUS CONVERSATION CONTEXT:\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("The following is your conversation history with this user. Use this to maintain continuity and reference previous exchanges.\n\n")

	for i, exchange := range history {
		preview := exchange.AssistantResponse
		if len(preview) > maxResponsePreview {
			preview = preview[:maxResponsePreview] + "..."
		}
		fmt.Fprintf(&b, "Exchange %d:\n", i+1)
		fmt.Fprintf(&b, "USER: %s\n", exchange.UserQuery)
		fmt.Fprintf(&b, "YOUR PREVIOUS RESPONSE: %s\n\n", preview)
	}

	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\nIMPORTANT: You DO have access to this conversation history. Reference it when answering follow-up questions.\n")
	return b.String()
}

// HasPriceBeenMentioned reports whether the current-price framing has
// already been used in this session. Unknown ids are created inline.
func (s *Store) HasPriceBeenMentioned(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		s.sessions[sessionID] = &session{createdAt: s.now(), lastAccessed: s.now()}
		return false
	}
	return sess.priceMentioned
}

// MarkPriceMentioned latches the per-session price flag. The transition is
// one-way; repeated calls are no-ops.
func (s *Store) MarkPriceMentioned(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{createdAt: s.now(), lastAccessed: s.now()}
		s.sessions[sessionID] = sess
	}
	sess.priceMentioned = true
}

// SessionInfo returns session metadata, reporting ok=false for unknown ids.
func (s *Store) SessionInfo(sessionID string) (models.SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.SessionInfo{}, false
	}
	return models.SessionInfo{
		SessionID:     sessionID,
		CreatedAt:     sess.createdAt,
		LastAccessed:  sess.lastAccessed,
		ExchangeCount: len(sess.history),
		Active:        true,
	}, true
}

// Clear removes a session, reporting whether it existed.
func (s *Store) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// ActiveSessions returns the number of live sessions.
func (s *Store) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// TotalExchanges returns the exchange count across all sessions.
func (s *Store) TotalExchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, sess := range s.sessions {
		total += len(sess.history)
	}
	return total
}

// sweepLocked drops expired sessions, then evicts oldest-by-last-access
// until the store is back under capacity. Caller holds s.mu.
func (s *Store) sweepLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastAccessed) > s.timeout {
			delete(s.sessions, id)
			s.logger.Debug("removed expired session", zap.String("session_id", id))
		}
	}

	if len(s.sessions) <= s.maxSessions {
		return
	}

	type entry struct {
		id       string
		accessed time.Time
	}
	entries := make([]entry, 0, len(s.sessions))
	for id, sess := range s.sessions {
		entries = append(entries, entry{id, sess.lastAccessed})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].accessed.Before(entries[j].accessed)
	})

	excess := len(s.sessions) - s.maxSessions
	for _, e := range entries[:excess] {
		delete(s.sessions, e.id)
		s.logger.Debug("evicted excess session", zap.String("session_id", e.id))
	}
}
