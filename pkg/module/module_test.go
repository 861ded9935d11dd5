package module_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/intent/pkg/module"
)

func TestNewInvalidPrefix(t *testing.T) {
	for _, prefix := range []string{"", "api", "/api/v1"} {
		assert.Panics(t, func() { module.New(prefix, http.NewServeMux()) }, prefix)
	}
	assert.Equal(t, "/api", module.New("/api", http.NewServeMux()).Prefix())
}

func TestServeStripsPrefix(t *testing.T) {
	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	})

	var wrapped bool
	m := module.New("/api", mux)
	m.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped = true
			next.ServeHTTP(w, r)
		})
	})

	m.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/workflows", nil))
	m.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil))

	assert.Equal(t, []string{"/workflows", "/"}, paths)
	assert.True(t, wrapped)
}

func TestRouter(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("GET /workflows", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("workflows"))
	})

	router := module.NewRouter()
	router.Mount(module.New("/api", api))
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	tests := []struct {
		path string
		want string
	}{
		{"/api/workflows", "workflows"},
		{"/api/workflows/", "workflows"},
		{"/healthz", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}
