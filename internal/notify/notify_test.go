package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSender struct {
	msgs []string
	err  error
}

func (f *fakeSender) Send(msg string) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

type fakeFirer struct {
	events []string
}

func (f *fakeFirer) Fire(event string, _ interface{}) {
	f.events = append(f.events, event)
}

type summary string

func (s summary) String() string { return "summary: " + string(s) }

func TestDispatcher_SendGoesToWebhooksOnly(t *testing.T) {
	tg, wh := &fakeSender{}, &fakeFirer{}
	d := New(zap.NewNop(), tg, wh)

	d.Send(EventEncoded, map[string]string{"output": "7~4₵(C)"})
	assert.Equal(t, []string{EventEncoded}, wh.events)
	assert.Empty(t, tg.msgs)
}

func TestDispatcher_Announce(t *testing.T) {
	tg, wh := &fakeSender{}, &fakeFirer{}
	d := New(zap.NewNop(), tg, wh)

	d.Announce(EventScheduleFired, summary("morning"))
	assert.Equal(t, []string{EventScheduleFired}, wh.events)
	assert.Equal(t, []string{"[schedule.fired] summary: morning"}, tg.msgs)
}

func TestDispatcher_NilAdapters(t *testing.T) {
	d := New(zap.NewNop(), nil, nil)
	d.Send(EventDecoded, nil)
	d.Announce(EventHistoryPruned, 3)
	d.SendTelegram("hello")

	var nilDispatcher *Dispatcher
	nilDispatcher.Announce(EventHistoryPruned, 3)
}

func TestDispatcher_TelegramErrorIsSwallowed(t *testing.T) {
	tg := &fakeSender{err: errors.New("boom")}
	d := New(zap.NewNop(), tg, nil)
	d.SendTelegram("hello")
	assert.Len(t, tg.msgs, 1)
}
