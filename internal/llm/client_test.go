package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

// chatServer stubs the chat completions endpoint with a fixed reply.
func chatServer(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", auth)
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("request model = %q, want test-model", req.Model)
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		resp := ChatResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Choices: []ChatChoice{
				{Message: ChatChoiceMessage{Role: "assistant", Content: reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_InferCategories(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    []string
		wantErr bool
	}{
		{
			name:  "plain JSON array",
			reply: `["Background", "Symptoms", "Mental Status", "Treatment Plan"]`,
			want:  []string{"Background", "Symptoms", "Mental Status", "Treatment Plan"},
		},
		{
			name:  "code-fenced reply",
			reply: "```json\n[\"Background\", \"Symptoms\", \"Mental Status\", \"Treatment Plan\"]\n```",
			want:  []string{"Background", "Symptoms", "Mental Status", "Treatment Plan"},
		},
		{
			name:  "short answer padded to four",
			reply: `["Background", "Symptoms"]`,
			want:  []string{"Background", "Symptoms", "Additional Notes", "Additional Notes"},
		},
		{
			name:  "long answer capped at seven",
			reply: `["A", "B", "C", "D", "E", "F", "G", "H", "I"]`,
			want:  []string{"A", "B", "C", "D", "E", "F", "G"},
		},
		{
			name:  "empty entries dropped then padded",
			reply: `["Background", "", "Symptoms", ""]`,
			want:  []string{"Background", "Symptoms", "Additional Notes", "Additional Notes"},
		},
		{
			name:    "prose instead of JSON",
			reply:   "Here are some categories I would suggest.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, http.StatusOK, tt.reply)
			client := NewClient(server.URL, "test-key", "test-model")

			got, err := client.InferCategories(context.Background(), "note content")
			if tt.wantErr {
				if err == nil {
					t.Fatal("InferCategories() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("InferCategories() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("InferCategories() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_GenerateDocuments(t *testing.T) {
	reply := `[
		{"title": "Symptoms", "content": "# Symptoms\n\nLow mood."},
		{"title": "Background", "content": "# Background\n\nNone reported."}
	]`
	server := chatServer(t, http.StatusOK, reply)
	client := NewClient(server.URL, "test-key", "test-model")

	docs, err := client.GenerateDocuments(context.Background(), "note content", []string{"Symptoms", "Background"})
	if err != nil {
		t.Fatalf("GenerateDocuments() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("GenerateDocuments() returned %d docs, want 2", len(docs))
	}
	if docs[0].Title != "Symptoms" || !strings.Contains(docs[0].Content, "Low mood.") {
		t.Errorf("GenerateDocuments()[0] = %+v", docs[0])
	}
}

func TestClient_GenerateDocumentsUnparsable(t *testing.T) {
	server := chatServer(t, http.StatusOK, "Sure! Here are your notes:")
	client := NewClient(server.URL, "test-key", "test-model")

	if _, err := client.GenerateDocuments(context.Background(), "note content", []string{"Symptoms"}); err == nil {
		t.Fatal("GenerateDocuments() expected error for unparsable reply, got nil")
	}
}

func TestClient_BadStatus(t *testing.T) {
	server := chatServer(t, http.StatusInternalServerError, "")
	client := NewClient(server.URL, "test-key", "test-model")

	if _, err := client.InferCategories(context.Background(), "note content"); err == nil {
		t.Fatal("InferCategories() expected error for 500 response, got nil")
	}
}

func TestClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`))
	}))
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "test-key", "test-model")

	if _, err := client.InferCategories(context.Background(), "note content"); err == nil {
		t.Fatal("InferCategories() expected error for empty choices, got nil")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `["A"]`, `["A"]`},
		{"json fence", "```json\n[\"A\"]\n```", `["A"]`},
		{"bare fence", "```\n[\"A\"]\n```", `["A"]`},
		{"surrounding whitespace", "  ```json\n[\"A\"]\n```  ", `["A"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.in); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
