package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	platformhttp "github.com/Alias1177/Cardeon/internal/platform/http"
	"github.com/Alias1177/Cardeon/models"
)

func testRequest() models.InferenceRequest {
	return models.InferenceRequest{
		SchemaName: "risk",
		Prompt:     "predict please",
		Schema: &models.Schema{
			Type: models.SchemaObject,
			Properties: map[string]*models.Schema{
				"riskCategory": {Type: models.SchemaString, Enum: []string{"Low", "High"}},
				"items": {
					Type: models.SchemaArray,
					Items: &models.Schema{
						Type:       models.SchemaObject,
						Properties: map[string]*models.Schema{"feature": {Type: models.SchemaString}},
						Required:   []string{"feature"},
					},
				},
			},
			Required: []string{"riskCategory", "items"},
		},
	}
}

const completion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "test-model",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"riskCategory\":\"Low\"}"}, "finish_reason": "stop"}]
}`

func newTestClient(url string, retries int) *Client {
	transport := platformhttp.NewClient(platformhttp.ClientOptions{
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		MaxRetryTimeout: 10 * time.Second,
	})
	return NewClient(transport, "sk-test", "test-model", url)
}

func TestGenerate(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completion))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL, 0).Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != `{"riskCategory":"Low"}` {
		t.Errorf("Generate() = %q", text)
	}

	if captured["model"] != "test-model" {
		t.Errorf("model = %v", captured["model"])
	}
	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("response_format = %v", captured["response_format"])
	}
	jsonSchema, _ := format["json_schema"].(map[string]any)
	if jsonSchema["name"] != "risk" || jsonSchema["strict"] != true {
		t.Errorf("json_schema = %v", jsonSchema)
	}
	schema, _ := jsonSchema["schema"].(map[string]any)
	if schema["type"] != "object" || schema["additionalProperties"] != false {
		t.Errorf("schema = %v", schema)
	}
}

func TestToJSONSchemaClosesNestedObjects(t *testing.T) {
	out := toJSONSchema(testRequest().Schema)

	items := out["properties"].(map[string]any)["items"].(map[string]any)
	if items["type"] != "array" {
		t.Fatalf("items type = %v", items["type"])
	}
	entry := items["items"].(map[string]any)
	if entry["additionalProperties"] != false {
		t.Errorf("nested object not closed: %v", entry)
	}
	if req, _ := entry["required"].([]string); len(req) != 1 || req[0] != "feature" {
		t.Errorf("nested required = %v", entry["required"])
	}

	rc := out["properties"].(map[string]any)["riskCategory"].(map[string]any)
	if _, ok := rc["additionalProperties"]; ok {
		t.Error("scalar schema must not carry additionalProperties")
	}
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Generate(context.Background(), testRequest())

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != http.StatusUnauthorized {
		t.Fatalf("Generate() error = %v, want APIError 401", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestGenerateServerErrorRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		w.Write([]byte(completion))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL, 1).Generate(context.Background(), testRequest()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Generate(context.Background(), testRequest())
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
	}
}
