// Package transform runs encode and decode requests through the cipher and
// fans the result out to history, the live feed and notifications.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/cipher"
	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/notify"
	"github.com/yourusername/jejecipher/internal/ws"
)

// ErrInputTooLarge is returned when a request's text exceeds the configured limit.
var ErrInputTooLarge = errors.New("transform: input too large")

// Request sources.
const (
	SourceAPI      = "api"
	SourceTelegram = "telegram"
	SourceSchedule = "schedule"
	SourceCLI      = "cli"
)

// Request is a single encode or decode call.
type Request struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// Result is what a caller gets back.
type Result struct {
	Ref       string    `json:"ref,omitempty"`
	Mode      string    `json:"mode"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Words     int       `json:"words"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Result) String() string {
	return fmt.Sprintf("%s %q → %q", r.Mode, r.Input, r.Output)
}

// Recorder persists results.
type Recorder interface {
	Record(ctx context.Context, t *db.Transform) (int64, error)
}

// Broadcaster pushes live messages.
type Broadcaster interface {
	Broadcast(msg ws.Message)
}

// Notifier receives transform events.
type Notifier interface {
	Send(event string, payload interface{})
}

// Options configures a Service.
type Options struct {
	MaxInputBytes int
	Delay         time.Duration
}

// Service wires the cipher to its side effects. Any of history, hub and
// notifier may be nil.
type Service struct {
	log      *zap.Logger
	history  Recorder
	hub      Broadcaster
	notifier Notifier
	opts     Options
}

// New creates a Service.
func New(log *zap.Logger, history Recorder, hub Broadcaster, notifier Notifier, opts Options) *Service {
	return &Service{
		log:      log.Named("transform"),
		history:  history,
		hub:      hub,
		notifier: notifier,
		opts:     opts,
	}
}

// Encode runs cipher.Encode on req.Text.
func (s *Service) Encode(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, db.ModeEncode, req)
}

// Decode runs cipher.Decode on req.Text.
func (s *Service) Decode(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, db.ModeDecode, req)
}

// Run dispatches on mode ("encode" or "decode").
func (s *Service) Run(ctx context.Context, mode string, req Request) (*Result, error) {
	switch mode {
	case db.ModeEncode, db.ModeDecode:
		return s.run(ctx, mode, req)
	}
	return nil, fmt.Errorf("transform.Run: unknown mode %q", mode)
}

func (s *Service) run(ctx context.Context, mode string, req Request) (*Result, error) {
	if s.opts.MaxInputBytes > 0 && len(req.Text) > s.opts.MaxInputBytes {
		return nil, ErrInputTooLarge
	}
	if req.Source == "" {
		req.Source = SourceAPI
	}

	if s.opts.Delay > 0 {
		t := time.NewTimer(s.opts.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var out string
	event := notify.EventEncoded
	if mode == db.ModeEncode {
		out = cipher.Encode(req.Text)
	} else {
		out = cipher.Decode(req.Text)
		event = notify.EventDecoded
	}

	res := &Result{
		Mode:      mode,
		Input:     req.Text,
		Output:    out,
		Words:     countWords(req.Text),
		CreatedAt: time.Now().UTC(),
	}

	if s.history != nil {
		rec := &db.Transform{
			Mode:      mode,
			Source:    req.Source,
			Input:     res.Input,
			Output:    res.Output,
			Words:     res.Words,
			CreatedAt: res.CreatedAt,
		}
		if _, err := s.history.Record(ctx, rec); err != nil {
			// The transform itself succeeded; history is best effort.
			s.log.Warn("record history", zap.String("mode", mode), zap.Error(err))
		} else {
			res.Ref = rec.Ref
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(ws.Message{
			Type:      ws.TypeTransform,
			Ref:       res.Ref,
			Message:   mode,
			Data:      res,
			Timestamp: res.CreatedAt,
		})
	}
	if s.notifier != nil {
		s.notifier.Send(event, res)
	}

	s.log.Debug("transform",
		zap.String("mode", mode),
		zap.String("source", req.Source),
		zap.Int("words", res.Words),
		zap.String("ref", res.Ref),
	)
	return res, nil
}

// countWords counts the single-space separated words of text, the same
// split the cipher uses.
func countWords(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, " ") + 1
}
