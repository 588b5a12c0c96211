package github

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadOnlyTransport(t *testing.T) {

	t.Run("happy path: GET goes through on a read-only client", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer pat-token", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := &ClientImpl{
			gitHubServer: server.URL,
			patToken:     "pat-token",
			readOnly:     true,
		}
		client.httpClient = &http.Client{Transport: &authorizedTransport{client: client}}

		req, _ := http.NewRequest("GET", server.URL+"/orgs/myorg/repos", nil)
		resp, err := client.httpClient.Do(req)
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("error path: mutation is refused at the transport level", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		client := &ClientImpl{
			gitHubServer: server.URL,
			patToken:     "pat-token",
			readOnly:     true,
		}
		client.httpClient = &http.Client{Transport: &authorizedTransport{client: client}}

		req, _ := http.NewRequest("DELETE", server.URL+"/repos/myorg/myrepo", nil)
		resp, err := client.httpClient.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "read-only client")
		assert.False(t, called)
	})

	t.Run("happy path: writable client lets mutations through", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := &ClientImpl{
			gitHubServer: server.URL,
			patToken:     "pat-token",
			readOnly:     false,
		}
		client.httpClient = &http.Client{Transport: &authorizedTransport{client: client}}

		req, _ := http.NewRequest("PUT", server.URL+"/orgs/myorg/teams/ateam", nil)
		resp, err := client.httpClient.Do(req)
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}
