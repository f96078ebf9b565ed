package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newArtifactServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/abis/DaiToken.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"contractName":"DaiToken","abi":[],"networks":{}}`))
		case "/abis/Broken.json":
			_, _ = w.Write([]byte(`<html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestArtifactClient_LoadArtifact(t *testing.T) {
	srv := newArtifactServer(t)
	c := NewArtifactClient(srv.URL+"/abis/", time.Second, zap.NewNop())

	data, err := c.LoadArtifact(context.Background(), "DaiToken")
	require.NoError(t, err)
	assert.JSONEq(t, `{"contractName":"DaiToken","abi":[],"networks":{}}`, string(data))
}

func TestArtifactClient_Errors(t *testing.T) {
	srv := newArtifactServer(t)
	c := NewArtifactClient(srv.URL+"/abis", time.Second, nil)

	tests := []struct {
		name    string
		errPart string
	}{
		{name: "Missing", errPart: "status 404"},
		{name: "Broken", errPart: "not valid JSON"},
		{name: "", errPart: "cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.errPart, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := c.LoadArtifact(ctx, tt.name)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}
