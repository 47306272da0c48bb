package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"council-cli/internal/council"
)

// ErrUnauthorized is returned whenever the server answers 401, on any
// endpoint. Callers treat it as a session-invalidation signal and log out.
var ErrUnauthorized = errors.New("unauthorized: session expired or invalid token")

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient builds an authenticated client.
func NewClient(server, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(server, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		token: token,
	}
}

// NewClientWithServer builds an unauthenticated client, used for login.
func NewClientWithServer(server string) *Client {
	return NewClient(server, "")
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// --- Login ---

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (c *Client) Login(password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.doJSON("POST", "/api/login", LoginRequest{Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("server returned no token")
	}
	return &resp, nil
}

// --- Conversations ---

func (c *Client) ListConversations() ([]council.ConversationMetadata, error) {
	var resp []council.ConversationMetadata
	if err := c.doJSON("GET", "/api/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateConversation() (*council.Conversation, error) {
	var resp council.Conversation
	if err := c.doJSON("POST", "/api/conversations", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetConversation(conversationID string) (*council.Conversation, error) {
	var resp council.Conversation
	if err := c.doJSON("GET", "/api/conversations/"+conversationID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- PDF contexts ---

type UploadPDFResponse struct {
	Success bool               `json:"success"`
	Pdf     council.PdfContext `json:"pdf"`
}

// UploadPDF sends a PDF as multipart form data. The server extracts and
// summarizes the content before attaching it to the conversation.
func (c *Client) UploadPDF(conversationID, filename string, r io.Reader) (*UploadPDFResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart form: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/api/conversations/"+conversationID+"/upload-pdf", &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if httpResp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %d: %s", httpResp.StatusCode, errDetail(respBody))
	}

	var resp UploadPDFResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &resp, nil
}

func (c *Client) RemovePDF(conversationID, pdfID string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.doJSON("DELETE", "/api/conversations/"+conversationID+"/pdf/"+pdfID, nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("server did not confirm removal")
	}
	return nil
}

// --- Generic JSON helper ---

func (c *Client) doJSON(method, path string, reqBody interface{}, result interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil && method != "GET" {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, errDetail(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// errDetail pulls the "detail" field out of a FastAPI-style error body,
// falling back to the raw body.
func errDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return string(body)
}
