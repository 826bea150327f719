// Package execution forwards run requests to an external Judge0 CE compatible
// service. The core treats execution as an opaque request/response: no
// retries, no sandboxing logic here.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// ErrUnsupportedLanguage rejects languages outside the supported map.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// languageIds maps editor language names to Judge0 CE language ids.
var languageIds = map[string]int{
	"javascript": 63, // Node.js
	"typescript": 74,
	"python":     71, // Python 3
	"java":       62,
	"cpp":        54, // C++ (GCC)
}

// Request is a run request as received from a client.
type Request struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Stdin    string `json:"stdin"`
}

// Status is the execution status as reported by the service.
type Status struct {
	Id          int    `json:"id"`
	Description string `json:"description"`
}

// Result is passed through to the caller verbatim; nullable fields stay
// pointers so "absent" survives the round trip.
type Result struct {
	Stdout        *string  `json:"stdout"`
	Stderr        *string  `json:"stderr"`
	CompileOutput *string  `json:"compile_output"`
	Status        *Status  `json:"status"`
	Time          *string  `json:"time"`
	Memory        *float64 `json:"memory"`
}

type submission struct {
	SourceCode string `json:"source_code"`
	LanguageId int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Run submits the code and waits for the result (wait=true, single round trip).
func (c *Client) Run(ctx context.Context, req Request) (*Result, error) {
	languageId, ok := languageIds[req.Language]
	if !ok {
		return nil, ErrUnsupportedLanguage
	}
	body, err := json.Marshal(submission{
		SourceCode: req.Code,
		LanguageId: languageId,
		Stdin:      req.Stdin,
	})
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/submissions?base64_encoded=false&wait=true"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "execution service")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, errors.Errorf("execution service returned %s", resp.Status)
	}
	result := Result{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "decode execution result")
	}
	return &result, nil
}
