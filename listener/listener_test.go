package listener_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/listener"
	"github.com/ferreirogomes/artshare/models"
	"github.com/ferreirogomes/artshare/session"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyArtPiece(ctx context.Context, sess session.Session, artworkID int64) (models.Artwork, error) {
	args := m.Called(sess, artworkID)
	return args.Get(0).(models.Artwork), args.Error(1)
}

func (m *MockVerifier) VerifyUser(ctx context.Context, sess session.Session, principal string) (models.UserAccount, error) {
	args := m.Called(sess, principal)
	return args.Get(0).(models.UserAccount), args.Error(1)
}

// sliceReader entrega as mensagens e depois bloqueia até o cancelamento.
// Só é lido pelo teste depois que Run retorna.
type sliceReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

const timeout = 2 * time.Second

func curatorSession() any {
	return mock.MatchedBy(func(s session.Session) bool {
		return s.Principal() == listener.AuthorityPrincipal && s.Can(session.CapVerify)
	})
}

func TestRunAppliesDecisionsAndSkipsBadMessages(t *testing.T) {
	verifier := new(MockVerifier)
	verifier.On("VerifyArtPiece", curatorSession(), int64(3)).Return(models.Artwork{ID: 3, Verified: true}, nil).Once()
	verifier.On("VerifyUser", curatorSession(), "alice").Return(models.UserAccount{}, ledger.ErrUserNotFound).Once()
	applied := make(chan struct{})
	verifier.On("VerifyUser", curatorSession(), "bob").Return(models.UserAccount{Principal: "bob", Verified: true}, nil).Once().
		Run(func(mock.Arguments) { close(applied) })

	reader := &sliceReader{msgs: []kafka.Message{
		{Offset: 10, Value: []byte(`{"kind":"artwork","artwork_id":3}`)},
		{Offset: 11, Value: []byte(`não é json`)},
		{Offset: 12, Value: []byte(`{"kind":"user","principal":"alice"}`)},
		{Offset: 13, Value: []byte(`{"kind":"desconhecido"}`)},
		{Offset: 14, Value: []byte(`{"kind":"user","principal":"bob"}`)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	l := listener.NewVerificationListener(reader, verifier, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-applied:
	case <-time.After(timeout):
		t.Fatal("decisões não foram aplicadas")
	}
	cancel()
	require.NoError(t, <-done)
	assert.True(t, reader.closed)
	assert.Equal(t, []int64{10, 11, 12, 13, 14}, reader.committed)
	verifier.AssertExpectations(t)
}

func TestRunRetriesInfrastructureFailuresBeforeCommitting(t *testing.T) {
	verifier := new(MockVerifier)
	verifier.On("VerifyArtPiece", curatorSession(), int64(7)).Return(models.Artwork{}, errors.New("banco indisponível")).Twice()
	applied := make(chan struct{})
	verifier.On("VerifyArtPiece", curatorSession(), int64(7)).Return(models.Artwork{ID: 7, Verified: true}, nil).Once().
		Run(func(mock.Arguments) { close(applied) })

	reader := &sliceReader{msgs: []kafka.Message{{Offset: 3, Value: []byte(`{"kind":"artwork","artwork_id":7}`)}}}
	ctx, cancel := context.WithCancel(context.Background())
	l := listener.NewVerificationListener(reader, verifier, zap.NewNop())
	l.RetryBackoff = time.Millisecond

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-applied:
	case <-time.After(timeout):
		t.Fatal("decisão não foi reaplicada")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int64{3}, reader.committed)
	verifier.AssertNumberOfCalls(t, "VerifyArtPiece", 3)
}

func TestRunLeavesFailedDecisionUncommittedOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	verifier := new(MockVerifier)
	verifier.On("VerifyUser", curatorSession(), "carol").Return(models.UserAccount{}, errors.New("banco indisponível")).
		Run(func(mock.Arguments) { cancel() })

	reader := &sliceReader{msgs: []kafka.Message{{Offset: 8, Value: []byte(`{"kind":"user","principal":"carol"}`)}}}
	l := listener.NewVerificationListener(reader, verifier, zap.NewNop())

	require.NoError(t, l.Run(ctx))
	assert.Empty(t, reader.committed)
	assert.True(t, reader.closed)
}

func TestRunReturnsReadErrors(t *testing.T) {
	boom := errors.New("broker indisponível")
	reader := &failingReader{err: boom}
	l := listener.NewVerificationListener(reader, new(MockVerifier), zap.NewNop())

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestApplyValidatesDecision(t *testing.T) {
	l := listener.NewVerificationListener(&sliceReader{}, new(MockVerifier), zap.NewNop())

	assert.ErrorIs(t, l.Apply(context.Background(), listener.Decision{Kind: "artwork"}), ledger.ErrInvalidRequest)
	assert.ErrorIs(t, l.Apply(context.Background(), listener.Decision{Kind: "user"}), ledger.ErrInvalidRequest)
	assert.ErrorIs(t, l.Apply(context.Background(), listener.Decision{Kind: "x"}), ledger.ErrInvalidRequest)
}

type failingReader struct{ err error }

func (r *failingReader) FetchMessage(context.Context) (kafka.Message, error) { return kafka.Message{}, r.err }
func (r *failingReader) CommitMessages(context.Context, ...kafka.Message) error {
	return nil
}
func (r *failingReader) Close() error { return nil }
