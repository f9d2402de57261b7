package hubspot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/go-json-experiment/json"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
)

// File is the subset of a Files v3 record the bridge cares about.
type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Extension string    `json:"extension"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName is the file name with its extension, suitable for UI labels
// and Content-Disposition headers.
func (f *File) DisplayName() string {
	if f.Extension == "" {
		return f.Name
	}
	return f.Name + "." + f.Extension
}

// SignedURL is a short-lived, pre-authorized download URL for one file,
// issued by HubSpot.
type SignedURL struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Extension string    `json:"extension"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FileContent is a streamed download. Callers own Body and must close it.
type FileContent struct {
	Body        io.ReadCloser
	ContentType string
	// Length is -1 when the CDN did not say.
	Length int64
}

// UploadOptions control where an uploaded file lands and who may fetch it.
type UploadOptions struct {
	// FolderPath is the files-tool folder the upload is placed in.
	FolderPath string
	// Access is the HubSpot visibility level, e.g. PRIVATE or
	// PUBLIC_NOT_INDEXABLE. Defaults to PRIVATE.
	Access string
}

// GetFile fetches a file's metadata.
func (c *Client) GetFile(ctx context.Context, accessToken, fileID string) (*File, error) {
	var f File
	err := requests.URL(c.APIBase).
		Pathf("/files/v3/files/%s", fileID).
		Bearer(accessToken).
		Client(c.HTTPClient).
		CheckStatus(http.StatusOK).
		ToJSON(&f).
		Fetch(ctx)
	metrics.HubSpotCall("files.get", err)
	if err != nil {
		return nil, fmt.Errorf("fetching file %s: %w", fileID, err)
	}
	return &f, nil
}

// SignedDownloadURL asks HubSpot for a pre-authorized download URL for the
// file. The URL is itself time-limited; fetch it per request, never cache.
func (c *Client) SignedDownloadURL(ctx context.Context, accessToken, fileID string) (*SignedURL, error) {
	var signed SignedURL
	err := requests.URL(c.APIBase).
		Pathf("/files/v3/files/%s/signed-url", fileID).
		Bearer(accessToken).
		Client(c.HTTPClient).
		CheckStatus(http.StatusOK).
		ToJSON(&signed).
		Fetch(ctx)
	metrics.HubSpotCall("files.signed_url", err)
	if err != nil {
		return nil, fmt.Errorf("fetching signed url for file %s: %w", fileID, err)
	}
	return &signed, nil
}

// Download streams the bytes behind a signed URL. The URL already embeds its
// authorization, so no bearer token is attached.
func (c *Client) Download(ctx context.Context, signedURL string) (*FileContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err == nil && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	metrics.HubSpotCall("files.download", err)
	if err != nil {
		return nil, fmt.Errorf("downloading file content: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &FileContent{
		Body:        resp.Body,
		ContentType: contentType,
		Length:      resp.ContentLength,
	}, nil
}

// UploadFile pushes content into the HubSpot files tool as a new file and
// returns the created record.
func (c *Client) UploadFile(ctx context.Context, accessToken, filename string, content io.Reader, opts UploadOptions) (*File, error) {
	if opts.Access == "" {
		opts.Access = "PRIVATE"
	}

	// Stream the multipart body through a pipe rather than assembling it in
	// memory. Closing the read end aborts the writer goroutine.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(func() error {
			part, err := mw.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, content); err != nil {
				return fmt.Errorf("reading upload content: %w", err)
			}
			var options bytes.Buffer
			if err := json.MarshalFull(&options, map[string]string{"access": opts.Access}); err != nil {
				return err
			}
			if err := mw.WriteField("options", options.String()); err != nil {
				return err
			}
			if opts.FolderPath != "" {
				if err := mw.WriteField("folderPath", opts.FolderPath); err != nil {
					return err
				}
			}
			return mw.Close()
		}())
	}()

	var f File
	err := requests.URL(c.APIBase).
		Path("/files/v3/files").
		Bearer(accessToken).
		ContentType(mw.FormDataContentType()).
		BodyReader(pr).
		Client(c.HTTPClient).
		CheckStatus(http.StatusOK, http.StatusCreated).
		ToJSON(&f).
		Fetch(ctx)
	metrics.HubSpotCall("files.upload", err)
	if err != nil {
		return nil, fmt.Errorf("uploading file %q: %w", filename, err)
	}
	return &f, nil
}
