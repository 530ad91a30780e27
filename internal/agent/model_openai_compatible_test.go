package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func testResponseSchema() *genai.Schema {
	lo, hi := 0.0, 100.0
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score":  {Type: genai.TypeInteger, Minimum: &lo, Maximum: &hi},
			"skills": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"score", "skills"},
	}
}

func TestOpenAICompatibleChatModel_Generate(t *testing.T) {
	var got map[string]interface{}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"{\"score\":70,\"skills\":[]}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer server.Close()

	m, err := NewOpenAICompatibleChatModel("sk-test", "qwen-plus", server.URL+"/v1",
		WithResponseJSONSchema("resume_evaluation", testResponseSchema()),
		WithOpenAITemperature(0.1),
		WithHTTPTimeout(5*time.Second),
	)
	require.NoError(t, err)

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("user"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score":70,"skills":[]}`, msg.Content)
	assert.Equal(t, "stop", msg.ResponseMeta.FinishReason)
	assert.Equal(t, 15, msg.ResponseMeta.Usage.TotalTokens)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "qwen-plus", got["model"])
	messages := got["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])

	format := got["response_format"].(map[string]interface{})
	assert.Equal(t, "json_schema", format["type"])
	js := format["json_schema"].(map[string]interface{})
	assert.Equal(t, "resume_evaluation", js["name"])
	assert.Equal(t, true, js["strict"])
	sch := js["schema"].(map[string]interface{})
	assert.Equal(t, "object", sch["type"])
	assert.Equal(t, false, sch["additionalProperties"])
}

func TestOpenAICompatibleChatModel_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	m, err := NewOpenAICompatibleChatModel("k", "m", server.URL+"/chat/completions")
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
	assert.ErrorContains(t, err, "429")
}

func TestOpenAICompatibleChatModel_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	m, err := NewOpenAICompatibleChatModel("k", "m", server.URL)
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
	assert.Error(t, err)
}

func TestNewOpenAICompatibleChatModel_Validation(t *testing.T) {
	_, err := NewOpenAICompatibleChatModel("", "m", "")
	assert.Error(t, err)
	_, err = NewOpenAICompatibleChatModel("k", " ", "")
	assert.Error(t, err)
}

func TestNormalizeChatURL(t *testing.T) {
	assert.Equal(t, defaultOpenAICompatibleURL, normalizeChatURL(""))
	assert.Equal(t, "https://x/v1/chat/completions", normalizeChatURL("https://x/v1/"))
	assert.Equal(t, "https://x/v1/chat/completions", normalizeChatURL("https://x/v1/chat/completions"))
}

func TestToJSONSchema(t *testing.T) {
	out := ToJSONSchema(testResponseSchema())
	assert.Equal(t, "object", out["type"])
	assert.Equal(t, []string{"score", "skills"}, out["required"])

	props := out["properties"].(map[string]interface{})
	score := props["score"].(map[string]interface{})
	assert.Equal(t, "integer", score["type"])
	assert.Equal(t, 0.0, score["minimum"])
	assert.Equal(t, 100.0, score["maximum"])

	skills := props["skills"].(map[string]interface{})
	assert.Equal(t, "array", skills["type"])
	assert.Equal(t, "string", skills["items"].(map[string]interface{})["type"])

	assert.Nil(t, ToJSONSchema(nil))
}
