package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Uploader pushes a file to an external storage endpoint via multipart POST
// and returns the location URL from the response body.
type Uploader struct {
	url        string
	httpClient *http.Client
}

func NewUploader(url string) *Uploader {
	return &Uploader{
		url:        url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload posts the file as the "file" field under a unique name and returns
// the trimmed response body, which the endpoint contracts to be the stored
// object's URL.
func (u *Uploader) Upload(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	name := uuid.New().String() + "-" + filepath.Base(filePath)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	location := strings.TrimSpace(string(raw))
	if location == "" {
		location = strings.TrimSpace(resp.Header.Get("Location"))
	}
	if location == "" {
		return "", fmt.Errorf("upload response had no location")
	}
	return location, nil
}
