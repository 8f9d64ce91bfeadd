package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"aivision/internal/models"
)

// RemoteDetector sends images to an external detection service over HTTP.
// The service receives a multipart "file" field and answers with
// {"annotatedImage": "data:...", "detections": [...]}.
type RemoteDetector struct {
	url    string
	client *http.Client
}

func NewRemoteDetector(url string, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *RemoteDetector) Detect(ctx context.Context, image []byte, filename string) (*Result, error) {
	if filename == "" {
		filename = "image.jpg"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detection backend returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Detections == nil {
		result.Detections = []models.Detection{}
	}

	return &result, nil
}
