package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testCall() EditCall {
	return EditCall{
		Model:       "test-model",
		Image:       InlineImage{Data: "QUJDRA==", MIMEType: "image/png"},
		Instruction: "make it blue",
		Sampling:    Sampling{Temperature: 0.2, TopP: 0.8, TopK: 32},
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Options{APIKey: "test-key", BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestEditImageDecodesInlineData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Fatalf("api key missing from query: %q", got)
		}
		var payload geminiGenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(payload.Contents) != 1 || len(payload.Contents[0].Parts) != 2 {
			t.Fatalf("unexpected request shape: %+v", payload)
		}
		if payload.Contents[0].Parts[0].InlineData == nil {
			t.Fatalf("image part missing: %+v", payload.Contents[0].Parts[0])
		}
		if got := payload.Contents[0].Parts[1].Text; got != "make it blue" {
			t.Fatalf("instruction mismatch: %q", got)
		}
		if payload.GenerationConfig == nil || payload.GenerationConfig.Temperature != 0.2 {
			t.Fatalf("sampling not forwarded: %+v", payload.GenerationConfig)
		}

		resp := geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{
				{Text: "here you go"},
				{InlineData: &geminiInlineData{MimeType: "image/png", Data: "ZWRpdGVk"}},
			}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	outcome, err := client.EditImage(context.Background(), testCall())
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	if outcome.Image == nil || outcome.Image.Data != "ZWRpdGVk" {
		t.Fatalf("inline image not extracted: %+v", outcome.Image)
	}
	if outcome.Image.MIMEType != "image/png" {
		t.Fatalf("mime mismatch: %q", outcome.Image.MIMEType)
	}
	if outcome.Text != "here you go" {
		t.Fatalf("text part lost: %q", outcome.Text)
	}
}

func TestEditImageDownloadsFileData(t *testing.T) {
	blob := []byte{0x89, 0x50, 0x4e, 0x47}
	mux := http.NewServeMux()
	mux.HandleFunc("/files/out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(blob)
	})

	var ts *httptest.Server
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		resp := geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{
				{FileData: &geminiFileData{FileURI: ts.URL + "/files/out.png"}},
			}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	ts = httptest.NewServer(mux)
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	outcome, err := client.EditImage(context.Background(), testCall())
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	if outcome.Image == nil {
		t.Fatalf("file data image not extracted")
	}
	if outcome.Image.Data != base64.StdEncoding.EncodeToString(blob) {
		t.Fatalf("downloaded bytes mismatch: %q", outcome.Image.Data)
	}
	if outcome.Image.MIMEType != "image/png" {
		t.Fatalf("mime mismatch: %q", outcome.Image.MIMEType)
	}
}

func TestEditImagePrefersInlineDataOverFileData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: "image/png", Data: "aW5saW5l"}},
				{FileData: &geminiFileData{FileURI: "https://example.invalid/never-fetched"}},
			}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	outcome, err := client.EditImage(context.Background(), testCall())
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	if outcome.Image == nil || outcome.Image.Data != "aW5saW5l" {
		t.Fatalf("inline data should win: %+v", outcome.Image)
	}
}

func TestEditImageNoImageParts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{Text: "I would rather not"}}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	outcome, err := client.EditImage(context.Background(), testCall())
	if err != nil {
		t.Fatalf("an image-less answer is not a transport error: %v", err)
	}
	if outcome.Image != nil {
		t.Fatalf("no image expected")
	}
	if outcome.Text != "I would rather not" {
		t.Fatalf("text mismatch: %q", outcome.Text)
	}
}

func TestEditImageSurfacesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exhausted"},
		})
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	_, err := client.EditImage(context.Background(), testCall())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("api message lost: %v", err)
	}
}

func TestDescribeImageReturnsFirstText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{
				{Text: "  a red cup on a table  "},
				{Text: "second answer"},
			}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	text, err := client.DescribeImage(context.Background(), "test-model", InlineImage{Data: "QUJDRA==", MIMEType: "image/png"}, "describe")
	if err != nil {
		t.Fatalf("DescribeImage: %v", err)
	}
	if text != "a red cup on a table" {
		t.Fatalf("text mismatch: %q", text)
	}
}

func TestDescribeImageNoTextIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(geminiGenerateContentResponse{})
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	text, err := client.DescribeImage(context.Background(), "test-model", InlineImage{Data: "QUJDRA==", MIMEType: "image/png"}, "describe")
	if err != nil {
		t.Fatalf("DescribeImage: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}
