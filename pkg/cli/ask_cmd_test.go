package cli

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const answerRespBody = `{
	"rows": [
		{"name": "web-1", "mean_value": 23.5},
		{"name": "web-2", "mean_value": 30}
	],
	"warnings": ["no points for server 12 in the requested range"],
	"strategy_used": "mysql_then_influxdb",
	"queries": [
		{"store": "mysql", "query": "SELECT id, name FROM servers", "row_count": 2, "elapsed_ms": 12, "attempts": 1}
	],
	"elapsed_ms": 340
}`

func TestAsk_JoinsArguments(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, answerRespBody))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv)
	rootCmd.SetArgs([]string{"--server", srv.URL, "ask", "average", "cpu", "temperature"})

	restore := captureStdout(t)
	err := rootCmd.Execute()
	restore()
	require.NoError(t, err)

	captured := rec.last()
	assert.Equal(t, "POST", captured.Method)
	assert.Equal(t, "/v1/answer", captured.Path)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(captured.Body), &body))
	assert.Equal(t, "average cpu temperature", body["question"])
}

func TestAsk_TableOutput(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, answerRespBody))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv)
	rootCmd.SetArgs([]string{"--server", srv.URL, "ask", "average cpu temperature"})

	restore := captureStdout(t)
	err := rootCmd.Execute()
	output := restore()
	require.NoError(t, err)

	assert.Contains(t, output, "MEAN_VALUE")
	assert.Contains(t, output, "NAME")
	assert.Contains(t, output, "web-1")
	assert.Contains(t, output, "23.5")
	// The strategy summary goes to stderr, not stdout.
	assert.NotContains(t, output, "strategy")
}

func TestAsk_JSONOutput(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, answerRespBody))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv)
	rootCmd.SetArgs([]string{"--server", srv.URL, "--output", "json", "ask", "average cpu temperature"})

	restore := captureStdout(t)
	err := rootCmd.Execute()
	output := restore()
	require.NoError(t, err)

	var parsed struct {
		Rows         []map[string]interface{} `json:"rows"`
		StrategyUsed string                   `json:"strategy_used"`
		Queries      []map[string]interface{} `json:"queries"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &parsed))
	assert.Len(t, parsed.Rows, 2)
	assert.Equal(t, "mysql_then_influxdb", parsed.StrategyUsed)
	assert.Len(t, parsed.Queries, 1, "JSON output should carry the per-store queries")
}

func TestAsk_CSVOutput(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, answerRespBody))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv)
	rootCmd.SetArgs([]string{"--server", srv.URL, "--output", "csv", "ask", "average cpu temperature"})

	restore := captureStdout(t)
	err := rootCmd.Execute()
	output := restore()
	require.NoError(t, err)

	assert.Equal(t, "mean_value,name\n23.5,web-1\n30,web-2\n", output)
}

func TestAsk_MarkdownOutput(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, answerRespBody))
	defer srv.Close()

	rootCmd := newTestRootCmd(t, srv)
	rootCmd.SetArgs([]string{"--server", srv.URL, "--output", "markdown", "ask", "average cpu temperature"})

	restore := captureStdout(t)
	err := rootCmd.Execute()
	output := restore()
	require.NoError(t, err)

	assert.Contains(t, output, "| mean_value | name |")
	assert.Contains(t, output, "| --- | --- |")
	assert.Contains(t, output, "| 23.5 | web-1 |")
}

func TestAsk_QuestionFromStdin(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, answerRespBody))
	defer srv.Close()

	stdinFrom(t, "disk usage of db-3\n")

	rootCmd := newTestRootCmd(t, srv)
	rootCmd.SetArgs([]string{"--server", srv.URL, "ask"})

	restore := captureStdout(t)
	err := rootCmd.Execute()
	restore()
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.last().Body), &body))
	assert.Equal(t, "disk usage of db-3", body["question"])
}

func TestAsk_EmptyStdin(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, answerRespBody))
	defer srv.Close()

	stdinFrom(t, "   \n")

	rootCmd := newTestRootCmd(t, srv)
	rootCmd.SetArgs([]string{"--server", srv.URL, "ask"})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provide a question")
}
