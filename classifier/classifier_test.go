package classifier

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"className":"banana","probability":0.93},{"className":"lemon","probability":0.04}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	preds, err := c.Classify(context.Background(), []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "banana", preds[0].ClassName)
	assert.InDelta(t, 0.93, preds[0].Probability, 1e-9)

	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, gotBody)
	assert.Equal(t, "image/jpeg", gotHeaders.Get("Content-Type"))
	_, err = uuid.Parse(gotHeaders.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestTop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"className":"water bottle","probability":0.6}]`))
	}))
	defer srv.Close()

	label, err := NewClient(srv.URL, 0).Top(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "water bottle", label)
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model not loaded"},
		{name: "bad json", status: http.StatusOK, body: "{"},
		{name: "empty list", status: http.StatusOK, body: "[]", wantErr: ErrNoPredictions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Classify(context.Background(), []byte("jpeg"))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestClassifyEmptyImage(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", time.Second).Classify(context.Background(), nil)
	assert.Error(t, err)
}
