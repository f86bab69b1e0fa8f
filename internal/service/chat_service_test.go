package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-chat-go/internal/memory"
	"persona-chat-go/internal/model"
	"persona-chat-go/internal/personality"
	"persona-chat-go/pkg/llm"
)

// fakeLLM records every request and answers with a fixed reply or error.
type fakeLLM struct {
	mu       sync.Mutex
	requests [][]llm.Message
	reply    string
	err      error
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, messages)
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return fmt.Sprintf("reply-%d", len(f.requests)), nil
}

func (f *fakeLLM) Stream(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, writer llm.MessageWriter) (string, error) {
	reply, err := f.Complete(ctx, messages, gen)
	if err != nil {
		return "", err
	}
	if err := writer.WriteMessage(1, []byte(reply)); err != nil {
		return "", err
	}
	return reply, nil
}

func (f *fakeLLM) lastRequest() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func fixedClock() memory.Option {
	var mu sync.Mutex
	t := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return memory.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	})
}

func TestChatSession_SendBuildsRequestBeforeAppending(t *testing.T) {
	fake := &fakeLLM{}
	s := NewChatSession("s1", 10, "desenvolvedor", fake, nil, fixedClock())

	reply, err := s.Send(context.Background(), "oi")
	require.NoError(t, err)
	assert.Equal(t, "reply-1", reply)

	req := fake.lastRequest()
	require.Len(t, req, 2)
	assert.Equal(t, "system", req[0].Role)
	assert.Equal(t, personality.Prompt("desenvolvedor"), req[0].Content)
	assert.Equal(t, llm.Message{Role: "user", Content: "oi"}, req[1])

	_, err = s.Send(context.Background(), "tudo bem?")
	require.NoError(t, err)
	req = fake.lastRequest()
	require.Len(t, req, 4)
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles(req))
	assert.Equal(t, "tudo bem?", req[3].Content)

	_, msgs := s.Snapshot()
	assert.Len(t, msgs, 4)
}

func TestChatSession_FailedCallKeepsUserMessageOnly(t *testing.T) {
	fake := &fakeLLM{err: llm.ErrRateLimit}
	s := NewChatSession("s1", 10, "", fake, nil)

	_, err := s.Send(context.Background(), "oi")
	require.ErrorIs(t, err, llm.ErrRateLimit)

	_, msgs := s.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, personality.DefaultKey, s.Personality())
}

func TestChatSession_StreamWritesChunks(t *testing.T) {
	fake := &fakeLLM{reply: "olá"}
	s := NewChatSession("s1", 10, "", fake, nil)
	w := &chunkRecorder{}

	reply, err := s.SendStream(context.Background(), "oi", w)
	require.NoError(t, err)
	assert.Equal(t, "olá", reply)
	assert.Equal(t, []string{"olá"}, w.chunks)
}

func TestChatSession_SelectPersonalityClears(t *testing.T) {
	s := NewChatSession("s1", 10, "", &fakeLLM{}, nil)
	_, err := s.Send(context.Background(), "oi")
	require.NoError(t, err)

	s.SelectPersonality("coach_pessoal")
	view := s.View()
	assert.Equal(t, "coach_pessoal", view.Personality)
	assert.Equal(t, personality.Name("coach_pessoal"), view.PersonalityName)
	assert.Zero(t, view.Summary.Total)
}

func TestChatSession_ReplaceKeepsPersonality(t *testing.T) {
	s := NewChatSession("s1", 3, "tutor_educacional", &fakeLLM{}, nil)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Replace([]model.ChatMessage{
		{Role: model.RoleUser, Content: "a", Timestamp: ts},
		{Role: model.RoleAssistant, Content: "b", Timestamp: ts},
		{Role: model.RoleUser, Content: "c", Timestamp: ts},
		{Role: model.RoleAssistant, Content: "d", Timestamp: ts},
	})
	key, msgs := s.Snapshot()
	assert.Equal(t, "tutor_educacional", key)
	require.Len(t, msgs, 3)
	assert.Equal(t, "b", msgs[0].Content)
}

func TestChatSession_ConcurrentSendsAreSerialized(t *testing.T) {
	s := NewChatSession("s1", 100, "", &fakeLLM{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Send(context.Background(), fmt.Sprintf("msg-%d", i))
		}(i)
	}
	wg.Wait()

	_, msgs := s.Snapshot()
	require.Len(t, msgs, 20)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, model.RoleUser, msgs[i].Role)
		assert.Equal(t, model.RoleAssistant, msgs[i+1].Role)
	}
}

// blockingLLM holds every call until release is closed.
type blockingLLM struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingLLM() *blockingLLM {
	return &blockingLLM{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingLLM) Complete(ctx context.Context, _ []llm.Message, _ *llm.GenerationParams) (string, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return "resposta atrasada", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *blockingLLM) Stream(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, _ llm.MessageWriter) (string, error) {
	return b.Complete(ctx, messages, gen)
}

func TestChatSession_SnapshotDoesNotWaitForModel(t *testing.T) {
	slow := newBlockingLLM()
	s := NewChatSession("s1", 10, "", slow, nil)

	sent := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "oi")
		sent <- err
	}()
	<-slow.started

	snapshot := make(chan []int, 1)
	go func() {
		_, msgs := s.Snapshot()
		view := s.View()
		snapshot <- []int{len(msgs), view.Summary.Total}
	}()
	select {
	case got := <-snapshot:
		assert.Equal(t, []int{1, 1}, got, "user message is visible while the call is in flight")
	case <-time.After(2 * time.Second):
		t.Fatal("Snapshot blocked while the model call was in flight")
	}

	close(slow.release)
	require.NoError(t, <-sent)
	_, msgs := s.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "resposta atrasada", msgs[1].Content)
}

func TestChatSession_StaleReplyIsDropped(t *testing.T) {
	slow := newBlockingLLM()
	s := NewChatSession("s1", 10, "assistente_geral", slow, nil)

	sent := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "oi")
		sent <- err
	}()
	<-slow.started

	s.SelectPersonality("coach_pessoal")
	close(slow.release)
	require.NoError(t, <-sent)

	key, msgs := s.Snapshot()
	assert.Equal(t, "coach_pessoal", key)
	assert.Empty(t, msgs, "a reply requested under the old personality must not land in the new window")
}

func TestUserFacingMessage(t *testing.T) {
	assert.Empty(t, UserFacingMessage(nil))
	assert.Contains(t, UserFacingMessage(fmt.Errorf("%w: bad key", llm.ErrAuthentication)), "autenticação")
	assert.Contains(t, UserFacingMessage(llm.ErrRateLimit), "Limite de requisições")
	assert.Contains(t, UserFacingMessage(&llm.APIError{StatusCode: 500, Body: "boom"}), "Erro na API")
	assert.Contains(t, UserFacingMessage(errors.New("dial tcp: timeout")), "Erro inesperado: dial tcp: timeout")
}

func TestBuildGenerationParams(t *testing.T) {
	assert.Nil(t, buildGenerationParams(0, 0, 0))
	gp := buildGenerationParams(0.7, 0, 150)
	require.NotNil(t, gp)
	assert.InDelta(t, 0.7, *gp.Temperature, 1e-9)
	assert.Nil(t, gp.TopP)
	assert.Equal(t, 150, *gp.MaxTokens)
}

type chunkRecorder struct {
	chunks []string
}

func (w *chunkRecorder) WriteMessage(_ int, data []byte) error {
	w.chunks = append(w.chunks, string(data))
	return nil
}

func roles(msgs []llm.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}
