package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostClassifier(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.reddit.com/r/widgets/comments/abc", "community"},
		{"https://youtube.com/watch?v=123", "video"},
		{"https://en.wikipedia.org/wiki/Widget", "reference"},
		{"https://medium.com/@author/widgets-ranked", "editorial"},
		{"https://example.com/page", "other"},
	}

	classifier := HostClassifier{}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			category, err := classifier.Classify(context.Background(), tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, category)
		})
	}
}

func TestHostClassifier_InvalidURL(t *testing.T) {
	_, err := HostClassifier{}.Classify(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestHTTPClassifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"category":"community"}`))
	}))
	defer server.Close()

	category, err := NewHTTPClassifier(server.URL).Classify(context.Background(), "https://reddit.com/r/widgets")
	require.NoError(t, err)
	assert.Equal(t, "community", category)
}

func TestHTTPClassifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPClassifier(server.URL).Classify(context.Background(), "https://example.com")
	assert.Error(t, err)
}

func TestHTTPClassifier_EmptyCategoryDefaultsToOther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	category, err := NewHTTPClassifier(server.URL).Classify(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "other", category)
}
