package llms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticClientRepeatsLastResponse(t *testing.T) {
	c := &StaticClient{Name: "static", Responses: []Response{{Text: "first"}, {Text: "second"}}}
	r1, err := c.Chat(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "first", r1.Text)

	r2, _ := c.Chat(context.Background(), nil, Options{})
	assert.Equal(t, "second", r2.Text)

	r3, _ := c.Chat(context.Background(), nil, Options{})
	assert.Equal(t, "second", r3.Text, "responses repeat the last entry once exhausted")
}

type flakyClient struct {
	failuresLeft int
	ModelNameVal string
}

func (f *flakyClient) ModelName() string { return f.ModelNameVal }

func (f *flakyClient) Chat(ctx context.Context, messages []Message, opts Options) (Response, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return Response{}, errors.New("transient failure")
	}
	return Response{Text: "recovered"}, nil
}

func (f *flakyClient) ChatStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func TestRetryingRecoversWithinBudget(t *testing.T) {
	flaky := &flakyClient{failuresLeft: 2, ModelNameVal: "flaky"}
	r := NewRetrying(flaky, 2)

	resp, err := r.Chat(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
}

func TestRetryingExhaustsAndFails(t *testing.T) {
	flaky := &flakyClient{failuresLeft: 5, ModelNameVal: "flaky"}
	r := NewRetrying(flaky, 2)

	_, err := r.Chat(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestSchemaForIncludesTypeAndProperties(t *testing.T) {
	type sample struct {
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	schema := SchemaFor(sample{})
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema, "properties")
}
