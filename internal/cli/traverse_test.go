package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/store"
	"github.com/roach88/sweep/internal/testutil"
)

const itemsYAML = `- name: apple
  price: 10
- name: pear
  price: 20
- name: plum
  price: 30
`

func writeData(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// traverseResponse mirrors the JSON output of the traverse command.
type traverseResponse struct {
	Status string         `json:"status"`
	RunID  string         `json:"run_id"`
	Data   TraverseResult `json:"data"`
	Error  *CLIError      `json:"error"`
}

func executeTraverse(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	opts := &TraverseOptions{
		RootOptions: &RootOptions{Format: format},
		TaskIDs:     testutil.NewSequentialIDs("run"),
	}
	buf := &bytes.Buffer{}
	cmd := newTraverseCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func traverseJSON(t *testing.T, args ...string) traverseResponse {
	t.Helper()
	out, err := executeTraverse(t, "json", args...)
	require.NoError(t, err)
	var resp traverseResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func names(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.(map[string]any)["name"].(string)
	}
	return out
}

func TestTraverse_CollectsList(t *testing.T) {
	path := writeData(t, "items.yaml", "[a, b, c]\n")

	resp := traverseJSON(t, path)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-0001", resp.RunID)
	assert.Equal(t, []any{"a", "b", "c"}, resp.Data.Values)
	assert.Equal(t, []any{float64(0), float64(1), float64(2)}, resp.Data.Keys)
	assert.Equal(t, []int{0, 1, 2}, resp.Data.Positions)
}

func TestTraverse_TextOutput(t *testing.T) {
	path := writeData(t, "items.yaml", "[a, b]\n")

	out, err := executeTraverse(t, "text", path)
	require.NoError(t, err)
	assert.Equal(t, "  [0] 0 = a\n  [1] 1 = b\n", out)
}

func TestTraverse_InlineOptions(t *testing.T) {
	path := writeData(t, "items.yaml", itemsYAML)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"reverse", []string{"--reverse"}, []string{"plum", "pear", "apple"}},
		{"count", []string{"--count", "2"}, []string{"apple", "pear"}},
		{"first", []string{"--first"}, []string{"apple"}},
		{"where", []string{"--where", `{"field":"price","op":"gt","value":15}`}, []string{"pear", "plum"}},
		{"inverse where", []string{"--inverse", "--where", `{"field":"price","op":"gt","value":15}`}, []string{"apple"}},
		{"cooperative", []string{"--cooperative", "--priority", "high"}, []string{"apple", "pear", "plum"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := traverseJSON(t, append([]string{path}, tt.args...)...)
			assert.Equal(t, tt.want, names(resp.Data.Values))
		})
	}
}

func TestTraverse_MappingInFileOrder(t *testing.T) {
	path := writeData(t, "prices.yaml", "zebra: 3\napple: 1\nmango: 2\n")

	resp := traverseJSON(t, path)
	assert.Equal(t, []any{"zebra", "apple", "mango"}, resp.Data.Keys)
	assert.Equal(t, []any{float64(3), float64(1), float64(2)}, resp.Data.Values)
}

func TestTraverse_JSONDataFile(t *testing.T) {
	path := writeData(t, "items.json", `[{"name":"apple","price":10},{"name":"pear","price":20}]`)

	resp := traverseJSON(t, path, "--reverse")
	assert.Equal(t, []string{"pear", "apple"}, names(resp.Data.Values))
}

func TestTraverse_Aggregators(t *testing.T) {
	path := writeData(t, "items.yaml", "[a, b, c]\n")

	resp := traverseJSON(t, path, "--aggregate", "count")
	assert.Equal(t, float64(3), resp.Data.Result)

	resp = traverseJSON(t, path, "--aggregate", "last")
	assert.Equal(t, "c", resp.Data.Result)

	out, err := executeTraverse(t, "text", path, "--aggregate", "count")
	require.NoError(t, err)
	assert.Equal(t, "result: 3\n", out)
}

func TestTraverse_NamedSpec(t *testing.T) {
	specs := createSpecsDir(t, map[string]string{"traversals.cue": validSpecs})
	path := writeData(t, "items.yaml", itemsYAML)

	resp := traverseJSON(t, path, "--specs", specs, "--use", "expensive")
	assert.Equal(t, []string{"pear", "plum"}, names(resp.Data.Values))

	resp = traverseJSON(t, path, "--specs", specs, "--use", "reversed")
	assert.Equal(t, []string{"plum", "pear", "apple"}, names(resp.Data.Values))
}

func TestTraverse_EmptySelection(t *testing.T) {
	path := writeData(t, "items.yaml", itemsYAML)

	out, err := executeTraverse(t, "text", path, "--where", `{"field":"price","op":"gt","value":100}`)
	require.NoError(t, err)
	assert.Equal(t, "(no elements selected)\n", out)
}

func TestTraverse_CommandErrors(t *testing.T) {
	path := writeData(t, "items.yaml", itemsYAML)
	specs := createSpecsDir(t, map[string]string{"traversals.cue": validSpecs})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"/nonexistent/items.yaml"}, "E005"},
		{"use without specs", []string{path, "--use", "expensive"}, "--use requires --specs"},
		{"specs without use", []string{path, "--specs", specs}, "--specs requires --use"},
		{"use with inline flag", []string{path, "--specs", specs, "--use", "expensive", "--reverse"}, "--use cannot be combined with --reverse"},
		{"unknown traversal", []string{path, "--specs", specs, "--use", "cheap"}, `traversal "cheap" not found`},
		{"bad where", []string{path, "--where", `{"field": [`}, "invalid --where"},
		{"unknown where op", []string{path, "--where", `{"field":"price","op":"near","value":1}`}, "invalid traversal options"},
		{"negative count", []string{path, "--count=-1"}, "must be non-negative"},
		{"bad priority", []string{path, "--priority", "urgent"}, "invalid traversal options"},
		{"bad aggregator", []string{path, "--aggregate", "sum"}, `invalid aggregator "sum"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeTraverse(t, "text", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestTraverse_UnsupportedData(t *testing.T) {
	path := writeData(t, "scalar.yaml", "42\n")

	out, err := executeTraverse(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTraversal, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "cannot traverse")
}

func TestTraverse_JournalFromConfig(t *testing.T) {
	path := writeData(t, "items.yaml", "[a, b]\n")
	dbPath := filepath.Join(t.TempDir(), "sweep.db")

	root := &RootOptions{Format: "json"}
	cfg := root.config()
	cfg.Journal.Path = dbPath
	root.Config = cfg

	opts := &TraverseOptions{RootOptions: root, TaskIDs: testutil.NewSequentialIDs("cfg")}
	cmd := newTraverseCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())

	out, err := executeTrace(t, "json", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "cfg-0001"`)
}

func createShopDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.Exec(ctx, `CREATE TABLE items (name TEXT NOT NULL, price INTEGER NOT NULL)`))
	for _, it := range []struct {
		name  string
		price int
	}{{"apple", 10}, {"pear", 20}, {"plum", 30}} {
		require.NoError(t, st.Exec(ctx, `INSERT INTO items (name, price) VALUES (?, ?)`, it.name, it.price))
	}
	return path
}

func TestTraverse_Table(t *testing.T) {
	db := createShopDB(t)

	resp := traverseJSON(t, db, "--table", "items")
	assert.Equal(t, []string{"apple", "pear", "plum"}, names(resp.Data.Values))

	resp = traverseJSON(t, db, "--table", "items", "--reverse",
		"--where", `{"field":"price","op":"gt","value":15}`)
	assert.Equal(t, []string{"plum", "pear"}, names(resp.Data.Values))
}

func TestTraverse_TableErrors(t *testing.T) {
	db := createShopDB(t)

	_, err := executeTraverse(t, "text", filepath.Join(t.TempDir(), "missing.db"), "--table", "items")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)

	_, err = executeTraverse(t, "text", db, "--table", "items; DROP TABLE items")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")

	_, err = executeTraverse(t, "text", db, "--table", "orders")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no such table")
}

func TestTraverse_Metrics(t *testing.T) {
	path := writeData(t, "items.yaml", "[a, b]\n")

	resp := traverseJSON(t, path, "--metrics")
	var completed float64
	for _, m := range resp.Data.Metrics {
		assert.Contains(t, m.Name, "sweep_")
		if m.Name == "sweep_traversals_total" && m.Labels["kind"] == "sequence" && m.Labels["outcome"] == "completed" {
			completed = m.Value
		}
	}
	assert.GreaterOrEqual(t, completed, float64(1))

	resp = traverseJSON(t, path)
	assert.Empty(t, resp.Data.Metrics)

	out, err := executeTraverse(t, "text", path, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "  [1] 1 = b\nmetrics:\n")
	assert.Contains(t, out, `  sweep_traversals_total{kind="sequence",outcome="completed"} `)
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "sweep_live_tasks", metricName(engine.MetricSample{Name: "sweep_live_tasks"}))
	assert.Equal(t, `sweep_traversals_total{kind="source",outcome="failed"}`, metricName(engine.MetricSample{
		Name:   "sweep_traversals_total",
		Labels: map[string]string{"outcome": "failed", "kind": "source"},
	}))
}
