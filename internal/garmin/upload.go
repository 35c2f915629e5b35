package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/httpx"
)

// importResult is the upload service's response document. Failure messages
// carry service codes; 202 marks a duplicate of already-imported data.
type importResult struct {
	DetailedImportResult struct {
		Failures []struct {
			Messages []struct {
				Code    int    `json:"code"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"failures"`
	} `json:"detailedImportResult"`
}

const duplicateMessageCode = 202

// Upload submits the encoded activity file and classifies the response. The
// service deduplicates by content/time fingerprint, so re-delivering already
// stored data yields OutcomeDuplicate — distinct from both success and error.
// Requires a prior successful Login (common.ErrNoActiveSession otherwise);
// the error return covers transport failures only, never classification.
func (s *Session) Upload(ctx context.Context, filename string, data []byte) (UploadOutcome, error) {
	if !s.Active() {
		return UploadOutcome{}, common.ErrNoActiveSession
	}

	body, contentType, err := multipartFile(filename, data)
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("build upload: %w", err)
	}

	resp, err := httpx.DoWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.apiBase+"/upload-service/upload/.fit", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
		req.Header.Set("DI-Backend", strings.TrimPrefix(s.apiBase, "https://"))
		req.Header.Set("X-Request-ID", uuid.NewString())
		return req, nil
	})
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("upload transport: %w", err)
	}

	respBody, err := httpx.ReadBody(resp)
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("upload response: %w", err)
	}

	return classify(resp, respBody), nil
}

// classify maps the service response onto an UploadOutcome.
func classify(resp *http.Response, body []byte) UploadOutcome {
	if resp.StatusCode == http.StatusConflict {
		return UploadOutcome{Code: OutcomeDuplicate}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UploadOutcome{Code: OutcomeRejected, Reason: resp.Status}
	}

	// 2xx can still carry a per-file duplicate verdict in the result body.
	var result importResult
	if err := json.Unmarshal(body, &result); err == nil {
		for _, f := range result.DetailedImportResult.Failures {
			for _, m := range f.Messages {
				if m.Code == duplicateMessageCode {
					return UploadOutcome{Code: OutcomeDuplicate}
				}
			}
		}
	}
	return UploadOutcome{Code: OutcomeAccepted}
}

// multipartFile wraps the file bytes in the multipart body the upload
// service expects.
func multipartFile(filename string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
