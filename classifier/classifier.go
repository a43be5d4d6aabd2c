package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/korjavin/compostbot/models"
)

const defaultTimeout = 30 * time.Second

// ErrNoPredictions is returned when the classifier answers with an empty list
var ErrNoPredictions = errors.New("classifier returned no predictions")

// Client sends images to an HTTP image classification service.
// The service accepts a JPEG body and answers with a JSON array of
// {"className": ..., "probability": ...} ordered by rank.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new classifier client
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Classify returns the ranked predictions for a JPEG image
func (c *Client) Classify(ctx context.Context, image []byte) ([]models.Prediction, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}

	requestID := uuid.NewString()
	startTime := time.Now()
	log.Printf("Sending %d byte image to classifier (request %s)", len(image), requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("Classifier request %s timed out after %v", requestID, time.Since(startTime))
		}
		return nil, fmt.Errorf("send classifier request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read classifier response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Classifier request %s failed with status %d: %s", requestID, resp.StatusCode, truncate(string(body), 200))
		return nil, fmt.Errorf("classifier request failed with status %d", resp.StatusCode)
	}

	var predictions []models.Prediction
	if err := json.Unmarshal(body, &predictions); err != nil {
		return nil, fmt.Errorf("parse classifier response: %w", err)
	}
	if len(predictions) == 0 {
		return nil, ErrNoPredictions
	}

	log.Printf("Classifier request %s completed in %v, top prediction %q (%.2f)",
		requestID, time.Since(startTime), predictions[0].ClassName, predictions[0].Probability)

	return predictions, nil
}

// Top returns only the class name of the top-ranked prediction
func (c *Client) Top(ctx context.Context, image []byte) (string, error) {
	predictions, err := c.Classify(ctx, image)
	if err != nil {
		return "", err
	}
	return predictions[0].ClassName, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
