package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"restaurant_live/internal/gateway"
	"restaurant_live/internal/model"
)

// graphql-transport-ws message types
const (
	Subprotocol = "graphql-transport-ws"

	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

const writeTimeout = 5 * time.Second

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type onCreateRestaurantData struct {
	OnCreateRestaurant *model.Restaurant `json:"onCreateRestaurant"`
}

// SubscribeOnCreate: opens a websocket, authenticates, and subscribes to onCreateRestaurant.
// The stream ends when Close is called, when ctx is done or when the server completes it.
func (c *Client) SubscribeOnCreate(ctx context.Context) (gateway.Subscription, error) {
	sub, err := c.subscribe(ctx)
	if err != nil {
		return nil, gateway.Fail(gateway.OpSubscribeOnCreate, err)
	}
	return sub, nil
}

func (c *Client) subscribe(ctx context.Context) (*subscription, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: defaultHttpConnectTimeout,
		Subprotocols:     []string{Subprotocol},
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", c.token)
	}

	ws, _, err := dialer.DialContext(ctx, c.realtimeURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	success := false
	defer func() {
		if !success {
			ws.Close()
		}
	}()

	initPayload, err := json.Marshal(map[string]string{"Authorization": c.token})
	if err != nil {
		return nil, err
	}
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteJSON(wsMessage{Type: msgConnectionInit, Payload: initPayload}); err != nil {
		return nil, fmt.Errorf("connection_init: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(c.ackTimeout))
	for acked := false; !acked; {
		var msg wsMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("waiting for connection_ack: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			acked = true
		case msgPing:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(wsMessage{Type: msgPong}); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unexpected %q before connection_ack", msg.Type)
		}
	}
	ws.SetReadDeadline(time.Time{})

	id := ulid.Make().String()
	subscribePayload, err := json.Marshal(request{Query: onCreateRestaurantSubscription})
	if err != nil {
		return nil, err
	}
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteJSON(wsMessage{ID: id, Type: msgSubscribe, Payload: subscribePayload}); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	sub := &subscription{
		ws:      ws,
		id:      id,
		events:  make(chan gateway.CreatedEvent),
		errs:    make(chan error, 1),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		client:  c,
	}
	go sub.read()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	success = true
	c.logger.Debug().Str("id", id).Msg("subscribed to onCreateRestaurant")
	return sub, nil
}

type subscription struct {
	ws *websocket.Conn
	id string

	events chan gateway.CreatedEvent
	errs   chan error

	writeMu   sync.Mutex
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}

	client *Client
}

func (s *subscription) Events() <-chan gateway.CreatedEvent {
	return s.events
}

func (s *subscription) Errors() <-chan error {
	return s.errs
}

func (s *subscription) write(msg wsMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.ws.WriteJSON(msg)
}

// report: hands err to Errors without blocking; extra errors are dropped while one is pending.
func (s *subscription) report(err error) {
	select {
	case s.errs <- gateway.Fail(gateway.OpSubscribeOnCreate, err):
	default:
		s.client.logger.Warn().Err(err).Msg("dropping subscription error")
	}
}

func (s *subscription) read() {
	defer func() {
		close(s.events)
		close(s.errs)
		close(s.done)
	}()

	for {
		var msg wsMessage
		if err := s.ws.ReadJSON(&msg); err != nil {
			select {
			case <-s.closing:
			default:
				s.report(fmt.Errorf("read: %w", err))
			}
			return
		}

		switch msg.Type {
		case msgNext:
			if msg.ID != s.id {
				continue
			}
			var payload response[onCreateRestaurantData]
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				s.report(fmt.Errorf("decode next: %w", err))
				continue
			}
			if len(payload.Errors) > 0 {
				s.report(joinErrors(payload.Errors))
				continue
			}
			if payload.Data.OnCreateRestaurant == nil {
				continue
			}
			select {
			case s.events <- gateway.CreatedEvent{Restaurant: *payload.Data.OnCreateRestaurant}:
			case <-s.closing:
				return
			}

		case msgError:
			if msg.ID != s.id {
				continue
			}
			var errs []graphQLError
			if err := json.Unmarshal(msg.Payload, &errs); err != nil || len(errs) == 0 {
				s.report(errors.New("subscription rejected"))
			} else {
				s.report(joinErrors(errs))
			}
			return

		case msgComplete:
			if msg.ID == s.id {
				return
			}

		case msgPing:
			if err := s.write(wsMessage{Type: msgPong}); err != nil {
				s.report(fmt.Errorf("pong: %w", err))
				return
			}

		case msgPong, msgConnectionAck:
		}
	}
}

// Close: completes the operation and closes the socket. It waits for the reader to finish.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		select {
		case <-s.done:
			// server already ended the stream
		default:
			if werr := s.write(wsMessage{ID: s.id, Type: msgComplete}); werr != nil {
				err = werr
			}
		}
		if cerr := s.ws.Close(); cerr != nil && err == nil {
			err = cerr
		}
		<-s.done
	})
	return err
}
