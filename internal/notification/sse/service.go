// Package sse provides Server-Sent Events support for real-time claim updates.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/httpkit"
	"claims_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventClaimChanged EventType = "claim_changed"
	EventClaimOverdue EventType = "claim_overdue"
	EventSessionEnded EventType = "session_ended"
)

const (
	// clientBuffer is the number of undelivered events kept per connection.
	clientBuffer = 32
	// DefaultSessionCheck is how often an open stream looks up its session.
	DefaultSessionCheck = 30 * time.Second
)

// Event represents an SSE event payload
type Event struct {
	Type        EventType   `json:"type"`
	ClaimNumber string      `json:"claimNumber"`
	Message     string      `json:"message,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client. viewer decides which claims it
// may hear about.
type client struct {
	userID uuid.UUID
	viewer domain.Viewer
	events chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	log     *logger.Logger

	sessions     httpkit.SessionResolver
	sessionCheck time.Duration
}

func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

// WithSessions makes open streams re-resolve their session every interval.
// A stream ends once its session is gone and takes over role changes of a
// live one.
func (s *Service) WithSessions(sessions httpkit.SessionResolver, every time.Duration) *Service {
	if every <= 0 {
		every = DefaultSessionCheck
	}
	s.sessions = sessions
	s.sessionCheck = every
	return s
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.userID] = append(s.clients[c.userID], c)
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
}

// Publish delivers the event to every connection allowed to read the claim.
// Slow connections drop the event instead of blocking the publisher.
func (s *Service) Publish(event Event, audience domain.Audience) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for userID, clients := range s.clients {
		for _, c := range clients {
			if !domain.CanView(c.viewer, audience) {
				continue
			}
			select {
			case c.events <- event:
				delivered++
			default:
				s.log.Warn("sse buffer full", "user_id", userID.String(), "event", string(event.Type))
			}
		}
	}
	return delivered
}

// Clients returns the number of open connections.
func (s *Service) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, clients := range s.clients {
		n += len(clients)
	}
	return n
}

// Handler streams claim events to the authenticated caller.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := httpkit.GetIdentity(c)
		if !identity.IsAuthenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		userID := identity.UserID()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID: userID,
			viewer: identity,
			events: make(chan Event, clientBuffer),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()
		s.log.Debug("sse client connected", "user_id", userID.String())

		var recheck <-chan time.Time
		if s.sessions != nil {
			ticker := time.NewTicker(s.sessionCheck)
			defer ticker.Stop()
			recheck = ticker.C
		}

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "user_id", userID.String())
				return
			case <-recheck:
				if !s.refreshSession(c.Request.Context(), cl, identity.SessionID()) {
					s.log.Debug("sse session ended", "user_id", userID.String())
					c.SSEvent(string(EventSessionEnded), gin.H{"userId": userID})
					c.Writer.Flush()
					return
				}
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// refreshSession reports whether the stream may stay open. Store outages keep
// the stream on its last known viewer.
func (s *Service) refreshSession(ctx context.Context, cl *client, sessionID string) bool {
	principal, err := s.sessions.ResolvePrincipal(ctx, sessionID)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) {
			return false
		}
		s.log.Warn("sse session check failed", "user_id", cl.userID.String(), "error", err)
		return true
	}
	if principal == nil || principal.UserID() != cl.userID {
		return false
	}
	s.mu.Lock()
	cl.viewer = principal
	s.mu.Unlock()
	return true
}

// Close disconnects every client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
