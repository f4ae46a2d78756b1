//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/stretchr/testify/require"

	"fedquery/internal/api"
	"fedquery/internal/catalog"
	"fedquery/internal/db"
	"fedquery/internal/db/repository"
	"fedquery/internal/domain"
	"fedquery/internal/engine"
	"fedquery/internal/intent"
	"fedquery/internal/plan"
	"fedquery/internal/service/answer"
	"fedquery/internal/service/history"
	"fedquery/internal/store/influx"
	"fedquery/internal/store/mysql"
)

// The suite wires the real router, services, plan pipeline, and SQLite
// history together and fakes only the outermost seams: the language model
// is scripted, MySQL answers through sqlmock, and InfluxDB through an HTTP
// fake of the 1.x /query endpoint.

// catalogYAML is the catalog every test server starts from.
const catalogYAML = `stores:
  mysql:
    - name: servers
      fields:
        - {name: id, type: number}
        - {name: name, type: string}
        - {name: region, type: string}
  influxdb:
    - name: cpu_temperature
      fields:
        - {name: time, type: timestamp}
        - {name: server_id, type: tag}
        - {name: value, type: number}
links:
  - relational: servers.id
    series: cpu_temperature.server_id
`

// influxMeanBody is a grouped MEAN over two server_id tags, as the 1.x
// /query endpoint shapes it.
const influxMeanBody = `{"results":[{"statement_id":0,"series":[
	{"name":"cpu_temperature","tags":{"server_id":"10"},"columns":["time","mean_value"],"values":[["2026-02-10T00:00:00Z",23.5]]},
	{"name":"cpu_temperature","tags":{"server_id":"12"},"columns":["time","mean_value"],"values":[["2026-02-10T00:00:00Z",30]]}
]}]}`

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// scriptedModel answers Complete by matching scripted question text against
// the prompt. An unscripted prompt fails the completion, which the pipeline
// reports as an intent parse error.
type scriptedModel struct {
	mu      sync.Mutex
	scripts map[string]string
}

func (m *scriptedModel) script(question, intentJSON string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[question] = intentJSON
}

func (m *scriptedModel) Complete(_ context.Context, _, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for q, resp := range m.scripts {
		if strings.Contains(user, q) {
			return resp, nil
		}
	}
	return "", fmt.Errorf("no scripted completion matches the prompt")
}

var _ domain.LanguageModel = (*scriptedModel)(nil)

// influxFake serves the 1.x /query endpoint. It answers every query with
// the configured body and records the query text; tests assert on the
// recorded text instead of matching queries exactly.
type influxFake struct {
	mu      sync.Mutex
	body    string
	queries []string
}

func (f *influxFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query().Get("q"))
	body := f.body
	f.mu.Unlock()

	if body == "" {
		body = `{"results":[{"statement_id":0}]}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Influxdb-Version", "1.8.10")
	_, _ = io.WriteString(w, body)
}

func (f *influxFake) respond(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
}

func (f *influxFake) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// ---------------------------------------------------------------------------
// Server setup
// ---------------------------------------------------------------------------

type testEnv struct {
	Server *httptest.Server
	MySQL  sqlmock.Sqlmock
	Influx *influxFake
	Model  *scriptedModel
}

type serverOpts struct {
	jwtSecret string
	noHistory bool
}

// setupServer builds one fully wired server. Cleanup is registered on t.
func setupServer(t *testing.T, opts serverOpts) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalogPath := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogYAML), 0o644))
	snap, err := catalog.Load(context.Background(), &catalog.FileSource{Path: catalogPath})
	require.NoError(t, err)
	provider := catalog.NewProvider(snap, logger)

	mysqlDB, mysqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mysqlDB.Close() })
	mysqlStore := mysql.NewWithDB(mysqlDB, "fleet", logger)

	fake := &influxFake{}
	influxSrv := httptest.NewServer(fake)
	t.Cleanup(influxSrv.Close)
	influxClient, err := client.NewHTTPClient(client.HTTPConfig{Addr: influxSrv.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = influxClient.Close() })
	influxStore := influx.NewWithClient(influxClient, "metrics", 4, logger)

	var repo domain.HistoryRepository
	if !opts.noHistory {
		writeDB, readDB := db.OpenTestSQLite(t)
		repo = repository.NewHistoryRepo(writeDB, readDB)
	}

	model := &scriptedModel{scripts: make(map[string]string)}
	orch := engine.NewOrchestrator(
		[]domain.StoreExecutor{mysqlStore, influxStore},
		engine.Config{QueryTimeout: 5 * time.Second, RetryInterval: 10 * time.Millisecond},
		logger,
	)
	answerSvc := answer.New(provider, intent.NewExtractor(model, logger), plan.NewBuilder(), orch, repo, logger)

	handler := api.NewHandler(answerSvc, provider, history.New(repo), logger)
	router, err := api.NewRouter(handler, api.RouterConfig{JWTSecret: opts.jwtSecret})
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{Server: srv, MySQL: mysqlMock, Influx: fake, Model: model}
}

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

func doRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// ask posts one question, decodes the response into out, and returns the
// HTTP status.
func (env *testEnv) ask(t *testing.T, question string, out any) int {
	t.Helper()
	resp := doRequest(t, "POST", env.Server.URL+"/v1/answer", "", map[string]string{"question": question})
	decodeJSON(t, resp, out)
	return resp.StatusCode
}

// waitForHistory polls the history endpoint until the total reaches
// wantTotal. History inserts run detached from the answer request, so the
// entry lands shortly after the response.
func (env *testEnv) waitForHistory(t *testing.T, query string, wantTotal int) map[string]any {
	t.Helper()

	var result map[string]any
	require.Eventuallyf(t, func() bool {
		resp, err := http.Get(env.Server.URL + "/v1/history" + query)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var r map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return false
		}
		total, _ := r["total"].(float64)
		if int(total) != wantTotal {
			return false
		}
		result = r
		return true
	}, 2*time.Second, 20*time.Millisecond, "history did not reach %d entries", wantTotal)
	return result
}

// signToken mints an HS256 token the router's auth middleware accepts.
func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
