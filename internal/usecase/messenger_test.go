package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/logging"
	"github.com/mmuslimabdulj/goat-dm/internal/translate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessenger_SendToOfflineReceiver(t *testing.T) {
	s := newTestStore(t)
	alice := &recordingEndpoint{}
	m := NewMessenger(s, translate.Nop{}, mapDirectory{"alice": alice}, "en", time.Second, logging.Discard())
	ctx := context.Background()

	msg, err := m.Send(ctx, alice, "alice", "bob", "hi")
	require.NoError(t, err)

	history, err := m.History(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "alice", history[0].Sender)
	assert.Equal(t, "bob", history[0].Receiver)
	assert.Equal(t, "hi", history[0].Body)
	assert.Nil(t, history[0].Translated)
	assert.True(t, msg.Timestamp.Equal(history[0].Timestamp))

	echoes := alice.payloads(t)
	require.Len(t, echoes, 1)
	assert.Equal(t, "alice", echoes[0].Sender)
	assert.Equal(t, "hi", echoes[0].Message)
	assert.Equal(t, "hi", echoes[0].OriginalMessage)
	assert.True(t, msg.Timestamp.Equal(echoes[0].Timestamp))
}

func TestMessenger_SendToOnlineReceiver(t *testing.T) {
	s := newTestStore(t)
	alice, bob := &recordingEndpoint{}, &recordingEndpoint{}
	tr := &stubTranslator{out: "hello"}
	m := NewMessenger(s, tr, mapDirectory{"alice": alice, "bob": bob}, "en", time.Second, logging.Discard())

	_, err := m.Send(context.Background(), alice, "alice", "bob", "hola")
	require.NoError(t, err)

	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, "auto", tr.source)
	assert.Equal(t, "en", tr.target)

	got := bob.payloads(t)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Message)
	assert.Equal(t, "hola", got[0].OriginalMessage)
	assert.True(t, got[0].Translated)
	assert.Equal(t, alice.payloads(t), got)

	history, err := m.History(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Translated)
	assert.Equal(t, "hello", *history[0].Translated)
}

func TestMessenger_TranslationFailureFallsBackToOriginal(t *testing.T) {
	s := newTestStore(t)
	alice, bob := &recordingEndpoint{}, &recordingEndpoint{}
	tr := &stubTranslator{err: translate.ErrUnavailable}
	m := NewMessenger(s, tr, mapDirectory{"bob": bob}, "en", time.Second, logging.Discard())

	msg, err := m.Send(context.Background(), alice, "alice", "bob", "hola")
	require.NoError(t, err)
	assert.Nil(t, msg.Translated)

	got := bob.payloads(t)
	require.Len(t, got, 1)
	assert.Equal(t, "hola", got[0].Message)
	assert.False(t, got[0].Translated)
}

type blockingTranslator struct{}

func (blockingTranslator) Translate(ctx context.Context, _, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestMessenger_TranslationTimeoutIsBounded(t *testing.T) {
	s := newTestStore(t)
	alice := &recordingEndpoint{}
	m := NewMessenger(s, blockingTranslator{}, mapDirectory{}, "en", 30*time.Millisecond, logging.Discard())

	start := time.Now()
	msg, err := m.Send(context.Background(), alice, "alice", "bob", "hola")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, msg.Translated)
	assert.Equal(t, 1, alice.count())
}

func TestMessenger_SelfMessageDeliveredOnce(t *testing.T) {
	s := newTestStore(t)
	alice := &recordingEndpoint{}
	m := NewMessenger(s, nil, mapDirectory{"alice": alice}, "", 0, logging.Discard())

	_, err := m.Send(context.Background(), alice, "alice", "alice", "note to self")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.count())
}

func TestMessenger_ReceiverOnAnotherHandle(t *testing.T) {
	s := newTestStore(t)
	origin, otherAliceTab := &recordingEndpoint{}, &recordingEndpoint{}
	m := NewMessenger(s, nil, mapDirectory{"alice": otherAliceTab}, "", 0, logging.Discard())

	_, err := m.Send(context.Background(), origin, "alice", "alice", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, origin.count())
	assert.Equal(t, 1, otherAliceTab.count())
}

func TestMessenger_RejectsInvalidInput(t *testing.T) {
	s := newTestStore(t)
	alice := &recordingEndpoint{}
	m := NewMessenger(s, nil, mapDirectory{}, "", 0, logging.Discard())
	ctx := context.Background()

	_, err := m.Send(ctx, alice, "", "bob", "hi")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = m.Send(ctx, alice, "alice", "  ", "hi")
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	_, err = m.Send(ctx, alice, "alice", "bob", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	assert.Equal(t, 0, alice.count())
	history, err := m.History(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, history)
}

type failingMessages struct{}

func (failingMessages) SaveMessage(context.Context, *domain.Message) error {
	return errors.New("disk full")
}

func (failingMessages) Conversation(context.Context, string, string) ([]domain.Message, error) {
	return nil, nil
}

func TestMessenger_PersistFailureSkipsDelivery(t *testing.T) {
	alice, bob := &recordingEndpoint{}, &recordingEndpoint{}
	m := NewMessenger(failingMessages{}, nil, mapDirectory{"bob": bob}, "", 0, logging.Discard())

	_, err := m.Send(context.Background(), alice, "alice", "bob", "hi")
	assert.Error(t, err)
	assert.Equal(t, 0, alice.count())
	assert.Equal(t, 0, bob.count())
}

func TestMessenger_HistorySymmetricAndSorted(t *testing.T) {
	s := newTestStore(t)
	m := NewMessenger(s, nil, mapDirectory{}, "", 0, logging.Discard())
	ctx := context.Background()

	for i, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}, {"alice", "bob"}, {"alice", "carol"}} {
		_, err := m.Send(ctx, nil, pair[0], pair[1], "msg")
		require.NoError(t, err, "send %d", i)
	}

	ab, err := m.History(ctx, "alice", "bob")
	require.NoError(t, err)
	ba, err := m.History(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Len(t, ab, 3)
	assert.Equal(t, ab, ba)
	for i := 1; i < len(ab); i++ {
		assert.False(t, ab[i].Timestamp.Before(ab[i-1].Timestamp))
	}
}

func TestMessenger_Typing(t *testing.T) {
	bob := &recordingEndpoint{}
	m := NewMessenger(newTestStore(t), nil, mapDirectory{"bob": bob}, "", 0, logging.Discard())

	m.Typing("alice", "bob")
	m.Typing("alice", "carol")
	m.Typing("", "bob")

	assert.Equal(t, 1, bob.count())
	assert.Empty(t, bob.payloads(t), "typing frames are not messages")
}
