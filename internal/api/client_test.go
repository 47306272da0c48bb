package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != "POST" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Password != "hunter2" {
			t.Errorf("password = %q, want hunter2", req.Password)
		}
		fmt.Fprint(w, `{"token":"tok-123"}`)
	}))
	defer srv.Close()

	resp, err := NewClientWithServer(srv.URL).Login("hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "tok-123" {
		t.Errorf("token = %q, want tok-123", resp.Token)
	}
}

func TestLoginEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	if _, err := NewClientWithServer(srv.URL).Login("pw"); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"Invalid password"}`)
	}))
	defer srv.Close()

	_, err := NewClientWithServer(srv.URL).Login("nope")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestListConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		fmt.Fprint(w, `[
			{"id":"c1","created_at":"2026-08-01T10:00:00","title":"First","message_count":4},
			{"id":"c2","created_at":"2026-08-02T11:00:00","title":"","message_count":0}
		]`)
	}))
	defer srv.Close()

	convs, err := NewClient(srv.URL, "tok").ListConversations()
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != "c1" || convs[0].Title != "First" || convs[0].MessageCount != 4 {
		t.Errorf("unexpected first conversation: %+v", convs[0])
	}
}

func TestCreateConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/conversations" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"c-new","created_at":"2026-08-30T09:00:00","messages":[]}`)
	}))
	defer srv.Close()

	conv, err := NewClient(srv.URL, "tok").CreateConversation()
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.ID != "c-new" {
		t.Errorf("id = %q, want c-new", conv.ID)
	}
}

func TestGetConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/c1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"id":"c1","created_at":"2026-08-01T10:00:00","title":"Physics",
			"messages":[
				{"role":"user","content":"why is the sky blue"},
				{"role":"assistant","content":"synth","stage3":{"model":"google/gemini-3-pro","response":"Rayleigh scattering."}}
			]
		}`)
	}))
	defer srv.Close()

	conv, err := NewClient(srv.URL, "tok").GetConversation("c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(conv.Messages))
	}
	if conv.Messages[1].Stage3 == nil || conv.Messages[1].Stage3.Response != "Rayleigh scattering." {
		t.Errorf("stage3 not decoded: %+v", conv.Messages[1].Stage3)
	}
}

func TestUploadPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/c1/upload-pdf" {
			t.Errorf("path = %q", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		if header.Filename != "paper.pdf" {
			t.Errorf("filename = %q, want paper.pdf", header.Filename)
		}
		fmt.Fprint(w, `{"success":true,"pdf":{"id":"p1","filename":"paper.pdf","summary":"A paper."}}`)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "tok").UploadPDF("c1", "paper.pdf", strings.NewReader("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("UploadPDF: %v", err)
	}
	if !resp.Success || resp.Pdf.ID != "p1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestRemovePDFNotConfirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			t.Errorf("method = %q, want DELETE", r.Method)
		}
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "tok").RemovePDF("c1", "p1"); err == nil {
		t.Fatal("expected error when server does not confirm removal")
	}
}

func TestErrDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"fastapi detail", `{"detail":"Conversation not found"}`, "Conversation not found"},
		{"no detail field", `{"error":"x"}`, `{"error":"x"}`},
		{"not json", "internal server error", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errDetail([]byte(tt.body)); got != tt.want {
				t.Errorf("errDetail(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestTrailingSlashServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "//") {
			t.Errorf("double slash in path %q", r.URL.Path)
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL+"/", "tok").ListConversations(); err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
}
