// Package stream manages the combined market-data and user-data
// subscription against the venue's futures stream endpoint.
package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/gorilla/websocket"

	"makerfill/internal/core"
	"makerfill/internal/metrics"
)

// EventHandler receives decoded events from the session. A returned error
// aborts the session.
type EventHandler interface {
	OnDepthUpdate(ctx context.Context, ev core.DepthUpdate) error
	OnOrderUpdate(ctx context.Context, ev core.OrderUpdate) error
}

// Options tune the subscription session.
type Options struct {
	// Endpoint is the futures stream base, e.g. wss://fstream.binance.com.
	Endpoint string
	// DepthLevels is the partial book depth per symbol (5, 10 or 20).
	DepthLevels int
	// DepthUpdateMs is the stream update rate (100, 250 or 500).
	DepthUpdateMs int
	// KeepaliveInterval is the listen key keepalive period.
	KeepaliveInterval time.Duration
}

// Session owns one combined websocket connection carrying a partial-depth
// stream per symbol plus the account's execution-report stream, and keeps
// the user-data listen key alive for the duration of the run.
type Session struct {
	client   *futures.Client
	symbols  []string
	handler  EventHandler
	logger   core.ILogger
	recorder *metrics.Recorder
	opts     Options

	dialer *websocket.Dialer
	renewC chan struct{}
}

// NewSession creates a session for the given symbols.
func NewSession(client *futures.Client, symbols []string, handler EventHandler, opts Options, logger core.ILogger, recorder *metrics.Recorder) *Session {
	return &Session{
		client:   client,
		symbols:  symbols,
		handler:  handler,
		logger:   logger.WithField("component", "stream"),
		recorder: recorder,
		opts:     opts,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		renewC:   make(chan struct{}, 1),
	}
}

// Run connects and dispatches events until ctx is cancelled (orderly
// close, nil return) or the transport fails (error return). Connection
// setup is retried with backoff; nothing inside the dispatch path is.
func (s *Session) Run(ctx context.Context) error {
	listenKey, err := s.startUserStream(ctx)
	if err != nil {
		return fmt.Errorf("start user stream: %w", err)
	}

	keepaliveCtx, stopKeepalive := context.WithCancel(ctx)
	defer stopKeepalive()
	go s.keepAliveListenKey(keepaliveCtx, listenKey)

	conn, err := s.dial(ctx, listenKey)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}

	// Unblock the read loop when the run is cancelled.
	go func() {
		<-ctx.Done()
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}()

	s.logger.Info("stream connected", "symbols", strings.Join(s.symbols, ","))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("stream closed")
				return nil
			}
			return fmt.Errorf("stream read: %w", err)
		}
		if err := s.dispatch(ctx, raw); err != nil {
			return err
		}
	}
}

// startUserStream acquires the user-data listen key, retrying transient
// failures with backoff.
func (s *Session) startUserStream(ctx context.Context) (string, error) {
	policy := retrypolicy.NewBuilder[string]().
		WithBackoff(time.Second, 10*time.Second).
		WithMaxRetries(3).
		Build()
	return failsafe.With[string](policy).WithContext(ctx).Get(func() (string, error) {
		return s.client.NewStartUserStreamService().Do(ctx)
	})
}

func (s *Session) dial(ctx context.Context, listenKey string) (*websocket.Conn, error) {
	streams := make([]string, 0, len(s.symbols)+1)
	for _, symbol := range s.symbols {
		streams = append(streams, fmt.Sprintf("%s@depth%d@%dms",
			strings.ToLower(symbol), s.opts.DepthLevels, s.opts.DepthUpdateMs))
	}
	streams = append(streams, listenKey)
	url := fmt.Sprintf("%s/stream?streams=%s", s.opts.Endpoint, strings.Join(streams, "/"))

	attempt := 0
	policy := retrypolicy.NewBuilder[*websocket.Conn]().
		WithBackoff(time.Second, 10*time.Second).
		WithMaxRetries(3).
		Build()
	return failsafe.With[*websocket.Conn](policy).WithContext(ctx).Get(func() (*websocket.Conn, error) {
		if attempt > 0 {
			s.recorder.RecordReconnect()
			s.logger.Warn("retrying stream connection", "attempt", attempt)
		}
		attempt++
		conn, _, err := s.dialer.DialContext(ctx, url, nil)
		return conn, err
	})
}

// keepAliveListenKey renews the listen key on a timer and on demand when
// the venue reports it expired.
func (s *Session) keepAliveListenKey(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(s.opts.KeepaliveInterval)
	defer ticker.Stop()

	renew := func() {
		err := s.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx)
		if err != nil {
			s.logger.Error("listen key keepalive failed", "error", err)
			return
		}
		s.logger.Debug("listen key kept alive")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renew()
		case <-s.renewC:
			renew()
		}
	}
}

func (s *Session) dispatch(ctx context.Context, raw []byte) error {
	ev, err := decodeMessage(raw)
	if err != nil {
		return err
	}
	s.recorder.RecordEvent(ev.Type)

	switch ev.Type {
	case eventDepthUpdate:
		return s.handler.OnDepthUpdate(ctx, *ev.Depth)
	case eventOrderTradeUpdate:
		return s.handler.OnOrderUpdate(ctx, *ev.Order)
	case eventListenKeyExpired:
		s.logger.Warn("listen key expired, renewing")
		select {
		case s.renewC <- struct{}{}:
		default:
		}
		return nil
	case eventAccountUpdate, eventTradeLite, eventMarginCall:
		return nil
	default:
		s.logger.Warn("unexpected stream event", "type", ev.Type)
		return nil
	}
}
