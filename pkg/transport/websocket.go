package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/kif"
	"github.com/kifreason/kifreason/pkg/rules"
)

// queryTimeout bounds how long a websocket client waits for a query
// result before the server gives up and reports a timeout.
const queryTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server accepts websocket connections on /ws, relays broadcast messages
// to every connected client, and turns client commands into reasoner
// events (spec §6 "Websocket protocol").
type Server struct {
	bus            *eventbus.Bus
	log            logrus.FieldLogger
	broadcastInput bool

	mu      sync.Mutex
	clients map[*websocket.Conn]chan string

	queriesMu sync.Mutex
	queries   map[string]chan events.QueryResult
}

// NewServer builds a Server subscribed to the broadcast-worthy events of
// bus. Call Handler to obtain an http.HandlerFunc for "/ws".
func NewServer(bus *eventbus.Bus, log logrus.FieldLogger, broadcastInput bool) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		bus:            bus,
		log:            log,
		broadcastInput: broadcastInput,
		clients:        make(map[*websocket.Conn]chan string),
		queries:        make(map[string]chan events.QueryResult),
	}
	bus.Subscribe(events.AssertionAdded{}, s.onAssertionAdded)
	bus.Subscribe(events.AssertionRetracted{}, s.onAssertionRetracted)
	bus.Subscribe(events.AssertionEvicted{}, s.onAssertionEvicted)
	bus.Subscribe(events.LLMResponse{}, s.onLLMResponse)
	bus.Subscribe(events.QueryResult{}, s.onQueryResult)
	if broadcastInput {
		bus.Subscribe(events.InputSubmitted{}, s.onInputSubmitted)
	}
	return s
}

func (s *Server) onQueryResult(event interface{}) {
	e := event.(events.QueryResult)
	s.queriesMu.Lock()
	ch, ok := s.queries[e.QueryID]
	if ok {
		delete(s.queries, e.QueryID)
	}
	s.queriesMu.Unlock()
	if ok {
		select {
		case ch <- e:
		default:
		}
	}
}

// Handler upgrades HTTP requests to websocket connections and services
// them until the client disconnects.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.WithError(err).Warn("transport: websocket upgrade failed")
			return
		}
		s.serve(conn)
	}
}

func (s *Server) serve(conn *websocket.Conn) {
	sessionID := uuid.NewString()
	out := make(chan string, 64)
	s.mu.Lock()
	s.clients[conn] = out
	s.mu.Unlock()
	s.log.WithField("session", sessionID).Info("transport: websocket client connected")

	done := make(chan struct{})
	go s.writeLoop(conn, out, done)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		close(done)
		conn.Close()
		s.log.WithField("session", sessionID).Info("transport: websocket client disconnected")
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		for _, line := range strings.Split(string(payload), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				s.handleCommand(line, out, sessionID)
			}
		}
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, out chan string, done chan struct{}) {
	for {
		select {
		case msg := <-out:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleCommand dispatches one line of client input per spec §6: `retract
// <id>`, `query <kif-list>`, or a raw `(`-prefixed payload submitted as
// input. out is this connection's broadcast channel, used to deliver a
// query's `result ...` reply directly back to the asking client.
func (s *Server) handleCommand(line string, out chan string, sessionID string) {
	switch {
	case strings.HasPrefix(line, "retract "):
		id := strings.TrimSpace(strings.TrimPrefix(line, "retract "))
		s.bus.Publish(events.RetractRequest{Kind: events.RetractByID, ID: id, Source: "websocket:" + sessionID})
	case strings.HasPrefix(line, "query "):
		s.handleQuery(strings.TrimSpace(strings.TrimPrefix(line, "query ")), out, sessionID)
	case strings.HasPrefix(line, "("):
		terms, err := kif.ParseAll(strings.NewReader(line))
		if err != nil {
			s.log.WithError(err).Warn("transport: malformed websocket input")
			return
		}
		for _, t := range terms {
			s.bus.Publish(events.InputSubmitted{Term: t, SourceID: "websocket:" + sessionID})
		}
	default:
		s.log.WithField("line", line).Warn("transport: unrecognized websocket command")
	}
}

func (s *Server) handleQuery(kifList string, out chan string, sessionID string) {
	terms, err := kif.ParseAll(strings.NewReader(kifList))
	if err != nil || len(terms) == 0 {
		s.log.WithError(err).Warn("transport: malformed query")
		return
	}
	queryID := sessionID + "_" + rules.NewID("query")
	results := make(chan events.QueryResult, 1)
	s.queriesMu.Lock()
	s.queries[queryID] = results
	s.queriesMu.Unlock()

	s.bus.Publish(events.QueryRequest{QueryID: queryID, Kind: events.AskBindings, Goal: terms[0]})

	// The wait-for-result task runs on the bus's own worker pool rather than
	// a bare goroutine: the websocket adapter is a sibling user of the same
	// pool that dispatches every reasoner event (spec §5).
	waitCtx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	if err := s.bus.Pool().Submit(waitCtx, func() {
		defer cancel()
		select {
		case r := <-results:
			select {
			case out <- fmt.Sprintf("result %s %s %s", r.QueryID, r.Status.String(), formatBindings(r.Bindings)):
			default:
			}
		case <-waitCtx.Done():
			s.queriesMu.Lock()
			delete(s.queries, queryID)
			s.queriesMu.Unlock()
			select {
			case out <- fmt.Sprintf("result %s %s", queryID, events.StatusTimeout.String()):
			default:
			}
		}
	}); err != nil {
		cancel()
		s.log.WithError(err).Warn("transport: failed to schedule query wait")
	}
}

// formatBindings renders a QueryResult's binding sets as `;`-separated
// `{?v=term,...}` groups (spec §6 "Websocket protocol").
func formatBindings(sets []map[string]string) string {
	groups := make([]string, 0, len(sets))
	for _, b := range sets {
		pairs := make([]string, 0, len(b))
		for v, t := range b {
			pairs = append(pairs, v+"="+t)
		}
		groups = append(groups, "{"+strings.Join(pairs, ",")+"}")
	}
	return strings.Join(groups, ";")
}

func (s *Server) broadcast(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, out := range s.clients {
		select {
		case out <- msg:
		default:
		}
	}
}

func (s *Server) onAssertionAdded(event interface{}) {
	e := event.(events.AssertionAdded)
	a := e.Assertion
	s.broadcast(fmt.Sprintf("assert-added %g %s %s {type:%s, depth:%d, kb:%s}",
		a.Priority, a.Kif.String(), a.ID, a.Kind.String(), a.DerivationDepth, a.KBID))
}

func (s *Server) onInputSubmitted(event interface{}) {
	e := event.(events.InputSubmitted)
	s.broadcast(fmt.Sprintf("assert-input %s", e.Term.String()))
}

func (s *Server) onAssertionRetracted(event interface{}) {
	e := event.(events.AssertionRetracted)
	s.broadcast(fmt.Sprintf("retract %s", e.ID))
}

func (s *Server) onAssertionEvicted(event interface{}) {
	e := event.(events.AssertionEvicted)
	s.broadcast(fmt.Sprintf("evict %s", e.ID))
}

func (s *Server) onLLMResponse(event interface{}) {
	e := event.(events.LLMResponse)
	s.broadcast(fmt.Sprintf("llm-response %s %s {type:%s, content:%q}", e.NoteID, e.ItemID, e.Kind, e.Content))
}
