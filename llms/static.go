package llms

import "context"

// StaticClient is a deterministic, in-process Client used by tests, and by
// cmd/agentcore's run command, which hands it to builder.Build in place of
// a live provider. Concrete network-backed providers are out of scope for this
// module (spec.md §1: "the underlying LLM provider beyond a chat/
// function-calling interface" is an external collaborator); StaticClient
// exists only so the contract itself is exercised end to end.
type StaticClient struct {
	Name      string
	Responses []Response // consumed in order; the last one repeats once exhausted
	calls     int
}

func (s *StaticClient) ModelName() string { return s.Name }

func (s *StaticClient) Chat(ctx context.Context, messages []Message, opts Options) (Response, error) {
	if len(s.Responses) == 0 {
		return Response{Text: ""}, nil
	}
	idx := s.calls
	if idx >= len(s.Responses) {
		idx = len(s.Responses) - 1
	}
	s.calls++
	return s.Responses[idx], nil
}

func (s *StaticClient) ChatStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	resp, err := s.Chat(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Delta: resp.Text}
	ch <- StreamChunk{Done: true}
	close(ch)
	return ch, nil
}
