package align

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reelsync/internal/timing"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context) (Model, error) {
	args := m.Called(ctx)
	if mdl, ok := args.Get(0).(Model); ok {
		return mdl, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockModel struct {
	mock.Mock
}

func (m *mockModel) Align(ctx context.Context, req Request) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

var clip = timing.AudioClipRef{Speaker: "Stewie", Path: "/clips/01_Stewie.wav", DurationSeconds: 1.5}

const twoWords = `{"word_segments":[
	{"word":"hello","start":0.1,"end":0.5,"phones":[{"phone":"HH","start":0.1,"end":0.2}]},
	{"word":"world","start":0.6,"end":1.9}
]}`

func TestSession_Aligned(t *testing.T) {
	ctx := context.Background()
	model := &mockModel{}
	loader := &mockLoader{}
	loader.On("Load", ctx).Return(model, nil).Once()
	model.On("Align", ctx, Request{Text: "Hello, world.", ClipPath: clip.Path, Duration: 1.5}).
		Return(json.RawMessage(twoWords), nil).Twice()

	s := NewSession(loader, nil)
	res := s.Align(ctx, "Hello, world", clip)
	require.Equal(t, StatusAligned, res.Status, res.Reason)
	require.Len(t, res.Words, 2)
	assert.Len(t, res.Words[0].Phonemes, 1)
	// Ends are clamped to the clip duration.
	assert.Equal(t, 1.5, res.Words[1].End)

	res = s.Align(ctx, "Hello, world", clip)
	assert.Equal(t, StatusAligned, res.Status)

	aligned, total := s.Coverage()
	assert.Equal(t, 2, aligned)
	assert.Equal(t, 2, total)
	loader.AssertExpectations(t)
	model.AssertExpectations(t)
}

func TestSession_CountMismatch(t *testing.T) {
	ctx := context.Background()
	model := &mockModel{}
	loader := &mockLoader{}
	loader.On("Load", ctx).Return(model, nil)
	model.On("Align", ctx, mock.Anything).Return(json.RawMessage(
		`[{"word":"hello","start":0,"end":0.3},{"word":"big","start":0.4,"end":0.6},{"word":"world","start":0.7,"end":1.0}]`,
	), nil)

	s := NewSession(loader, nil)
	res := s.Align(ctx, "Hello, world.", clip)
	assert.Equal(t, StatusInvalid, res.Status)
	assert.Nil(t, res.Words)
	assert.Contains(t, res.Reason, "3 words")

	aligned, total := s.Coverage()
	assert.Equal(t, 0, aligned)
	assert.Equal(t, 1, total)
}

func TestSession_Degraded(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
		err     error
		text    string
		want    Status
	}{
		{name: "model error", err: errors.New("boom"), text: "Hi there.", want: StatusUnavailable},
		{name: "unknown shape", payload: `{"result":"ok"}`, text: "Hi there.", want: StatusInvalid},
		{name: "not monotonic", payload: `[{"word":"hi","start":0.5,"end":0.8},{"word":"there","start":0.2,"end":0.4}]`, text: "Hi there.", want: StatusInvalid},
		{name: "zero length word", payload: `[{"word":"hi","start":0.5,"end":0.5},{"word":"there","start":0.6,"end":0.9}]`, text: "Hi there.", want: StatusInvalid},
		{name: "starts after clip", payload: `[{"word":"hi","start":0.1,"end":0.3},{"word":"there","start":1.6,"end":1.9}]`, text: "Hi there.", want: StatusInvalid},
		{name: "no words", payload: `[]`, text: "  ", want: StatusInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &mockModel{}
			loader := &mockLoader{}
			loader.On("Load", ctx).Return(model, nil)
			var raw json.RawMessage
			if tt.payload != "" {
				raw = json.RawMessage(tt.payload)
			}
			model.On("Align", ctx, mock.Anything).Return(raw, tt.err).Maybe()

			res := NewSession(loader, nil).Align(ctx, tt.text, clip)
			assert.Equal(t, tt.want, res.Status)
			assert.NotEmpty(t, res.Reason)
			assert.Nil(t, res.Words)
		})
	}
}

func TestSession_NoLoader(t *testing.T) {
	s := NewSession(nil, nil)
	res := s.Align(context.Background(), "Hello.", clip)
	assert.Equal(t, StatusUnavailable, res.Status)

	aligned, total := s.Coverage()
	assert.Equal(t, 0, aligned)
	assert.Equal(t, 1, total)
	assert.NoError(t, s.Close())
}

func TestSession_LoadFailureIsRemembered(t *testing.T) {
	ctx := context.Background()
	loader := &mockLoader{}
	loader.On("Load", ctx).Return(nil, errors.New("connection refused")).Once()

	s := NewSession(loader, nil)
	for i := 0; i < 3; i++ {
		res := s.Align(ctx, "Hello.", clip)
		assert.Equal(t, StatusUnavailable, res.Status)
		assert.Contains(t, res.Reason, "connection refused")
	}
	loader.AssertNumberOfCalls(t, "Load", 1)
}

// concurrencyModel records how many Align calls overlap.
type concurrencyModel struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	closed   atomic.Bool
}

func (m *concurrencyModel) Align(_ context.Context, _ Request) (json.RawMessage, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return json.RawMessage(`[{"word":"hello","start":0.0,"end":0.5}]`), nil
}

func (m *concurrencyModel) Close() error {
	m.closed.Store(true)
	return nil
}

type staticLoader struct{ model Model }

func (l staticLoader) Load(context.Context) (Model, error) { return l.model, nil }

func TestSession_SerializesCalls(t *testing.T) {
	model := &concurrencyModel{}
	s := NewSession(staticLoader{model: model}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := s.Align(context.Background(), "Hello.", clip)
			assert.Equal(t, StatusAligned, res.Status)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), model.maxSeen.Load())
	aligned, total := s.Coverage()
	assert.Equal(t, 8, aligned)
	assert.Equal(t, 8, total)

	require.NoError(t, s.Close())
	assert.True(t, model.closed.Load())
}

func TestCoveragePercent(t *testing.T) {
	assert.Equal(t, 0.0, CoveragePercent(0, 0))
	assert.Equal(t, 75.0, CoveragePercent(3, 4))
}
