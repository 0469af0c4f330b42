package proxy

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func htmlResponse(contentType, body string) *http.Response {
	resp := &http.Response{
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   io.NopCloser(strings.NewReader(body)),
	}
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return resp
}

func TestRewriteWebSocketURLsAllQuotingStyles(t *testing.T) {
	rewrite := NewHTMLRewriter("localhost:3090", "9443")

	body := `<html><head><script>
		const a = ws://localhost:3090/hmr;
		const b = "ws://localhost:3090/hmr";
		const c = 'wss://localhost:3090/hmr';
	</script></head></html>`

	resp := htmlResponse("text/html; charset=utf-8", body)
	require.NoError(t, rewrite(resp))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.NotContains(t, string(got), ":3090/")
	assert.Contains(t, string(got), `ws://localhost:9443/hmr`)
	assert.Contains(t, string(got), `"ws://localhost:9443/hmr"`)
	assert.Contains(t, string(got), `'wss://localhost:9443/hmr'`)
}

func TestRewriteRecomputesContentLength(t *testing.T) {
	rewrite := NewHTMLRewriter("localhost:3090", "11443")

	body := `<a href="ws://localhost:3090/x">` // rewritten port is longer
	resp := htmlResponse("text/html", body)
	require.NoError(t, rewrite(resp))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(len(got)), resp.Header.Get("Content-Length"))
	assert.Equal(t, int64(len(got)), resp.ContentLength)
	assert.Greater(t, len(got), len(body))
}

func TestRewriteSkipsNonHTML(t *testing.T) {
	rewrite := NewHTMLRewriter("localhost:3090", "9443")

	body := `{"endpoint":"ws://localhost:3090/api"}`
	resp := htmlResponse("application/json", body)
	require.NoError(t, rewrite(resp))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(got), "non-HTML bodies pass through untouched")
}
