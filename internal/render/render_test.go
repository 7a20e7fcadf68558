package render

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maml/internal/config"
	"maml/internal/maml"
)

func sampleMAML() *maml.MAML {
	return &maml.MAML{
		ID:               "m-1",
		Title:            "Sugarcane ethanol",
		ProcessFeedstock: "sugarcane",
		ProcessTarget:    "ethanol",
		ProcessFlow: []maml.ProcessFlowStep{
			{
				Type:       "pretreatment.dilute_acid_pretreatment",
				Parameters: []maml.Parameter{{Name: "sugar_yield", Unit: "%"}},
				Output:     &maml.Output{Name: "Sugar Juice", Unit: "tonne/day"},
			},
			{
				Type:       "separation.ethanol_purification",
				Parameters: []maml.Parameter{{Name: "recovery", Unit: "%"}},
				Output:     &maml.Output{Name: "Ethanol", Unit: "tonne/day"},
			},
		},
	}
}

func sampleParams() maml.Params {
	return maml.Params{
		Values: map[string]float64{
			"input_product_amount": 100,
			"input_product_price":  2,
			"cap_ex":               1000,
			"target_product_price": 10,
			"sugar_yield":          50,
		},
		Prices: map[string]float64{"sugarcane": 2},
	}
}

func sampleEval() maml.TEAEval {
	return maml.TEAEval{
		Type:  maml.EvalTypeSimulation,
		Level: maml.LevelSynthesized,
		ExecHistory: []maml.ExecRecord{
			{FunctionName: "process_function_output_num_sugar_juice", FunctionSource: "f(input_product_amount) = input_product_amount * 0.5", InputAmount: 100, OutputValue: 50},
			{FunctionName: "process_function_output_num_ethanol", FunctionSource: "g(input_product_amount) = input_product_amount * 0.76", InputAmount: 50, OutputValue: 38},
		},
		Result:    map[string]float64{"production_costs": 1200, "irr": 37},
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWorksheet(t *testing.T) {
	eval := sampleEval()
	out := Worksheet(sampleMAML(), sampleParams(), eval.ExecHistory, eval.Result)
	lines := strings.Split(strings.TrimSpace(out), "\n")

	assert.Equal(t, "item,value,units,formula", strings.ToLower(lines[0]))
	assert.Contains(t, lines, "Feedstock - sugarcane,,,")
	assert.Contains(t, lines, "amount,100,tonne/day,")
	assert.Contains(t, lines, "capital expenditure,1000,usd,")
	assert.Contains(t, lines, "sugarcane price,2,usd,")
	assert.Contains(t, lines, "Step 1 - pretreatment.dilute_acid_pretreatment,,,")
	assert.Contains(t, lines, "sugar_yield,50,%,")
	assert.Contains(t, lines, "recovery,,%,", "unset params stay blank")
	assert.Contains(t, lines, "process_function_output_num_sugar_juice,,,f(input_product_amount) = input_product_amount * 0.5")
	assert.Contains(t, lines, "Sugar Juice,50,tonne/day,")
	assert.Contains(t, lines, "Ethanol,38,tonne/day,")
	assert.Contains(t, lines, "Results - ethanol,,,")
	assert.Contains(t, lines, "irr,37,,")

	// results are sorted
	assert.Less(t, strings.Index(out, "irr,37"), strings.Index(out, "production_costs,1200"))
}

func TestWorksheetWithoutRun(t *testing.T) {
	out := Worksheet(sampleMAML(), maml.Params{}, nil, nil)
	assert.Contains(t, out, "Sugar Juice,,tonne/day,")
	assert.NotContains(t, out, "Results")
}

func TestReport(t *testing.T) {
	md := Report(sampleMAML(), []maml.TEAEval{sampleEval()})
	assert.True(t, strings.HasPrefix(md, "# Sugarcane ethanol\n"))
	assert.Contains(t, md, "pretreatment.dilute_acid_pretreatment")
	assert.Contains(t, md, "Sugar Juice (tonne/day)")
	assert.Contains(t, md, "## Evaluation 1: level 1 (2024-03-01 12:00:00)")
	assert.Contains(t, md, "1200.0000")

	empty := Report(sampleMAML(), nil)
	assert.Contains(t, empty, "No evaluations recorded")
}

func TestTerminal(t *testing.T) {
	out, err := Terminal("# Heading\n\nSome *text*.", 60)
	require.NoError(t, err)
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "text")
}

func TestLocalSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewLocalSink(dir)

	where, err := sink.Put(context.Background(), "m-1/"+WorksheetFile, []byte("a,b\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "m-1", WorksheetFile), where)
	data, err := os.ReadFile(where)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	where, err = sink.Put(context.Background(), "../../escape.txt", []byte("x"), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), where)

	_, err = sink.Put(context.Background(), "", nil, "")
	assert.Error(t, err)
}

type failingSink struct{}

func (failingSink) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("sink down")
}

func TestArtifacts(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifacts(NewLocalSink(dir))
	ctx := context.Background()

	where, err := a.WriteWorksheet(ctx, sampleMAML(), sampleParams(), sampleEval())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "m-1", WorksheetFile), where)

	where, err = a.WriteReport(ctx, sampleMAML(), []maml.TEAEval{sampleEval()})
	require.NoError(t, err)
	data, err := os.ReadFile(where)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Sugarcane ethanol")

	_, err = NewArtifacts(failingSink{}).WriteWorksheet(ctx, sampleMAML(), sampleParams(), sampleEval())
	assert.EqualError(t, err, "sink down")
}

// fakeS3 answers the handful of S3 calls the sink makes.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  bool
	created bool
	keys    []string
	types   []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.Copy(io.Discard, r.Body)

	p := strings.TrimPrefix(r.URL.Path, "/artifacts")
	switch {
	case r.Method == http.MethodHead && (p == "" || p == "/"):
		if !f.bucket {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && (p == "" || p == "/"):
		f.bucket, f.created = true, true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		f.keys = append(f.keys, strings.TrimPrefix(p, "/"))
		f.types = append(f.types, r.Header.Get("Content-Type"))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func TestMinIOSink(t *testing.T) {
	s3 := &fakeS3{}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	cfg := config.MinIOConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "artifacts",
	}
	ctx := context.Background()
	sink, err := NewMinIOSink(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, s3.created, "missing bucket is created")

	where, err := sink.Put(ctx, "m-1/report.md", []byte("# hi\n"), "text/markdown")
	require.NoError(t, err)
	assert.Equal(t, "s3://artifacts/m-1/report.md", where)

	s3.mu.Lock()
	defer s3.mu.Unlock()
	assert.Equal(t, []string{"m-1/report.md"}, s3.keys)
	assert.Equal(t, []string{"text/markdown"}, s3.types)
}

func TestNewSink(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Artifacts.Sink = "local"
	cfg.Artifacts.Dir = t.TempDir()
	sink, err := NewSink(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalSink{}, sink)

	cfg.Artifacts.Sink = "ftp"
	_, err = NewSink(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Artifacts.Sink = "minio"
	cfg.Artifacts.MinIO = config.MinIOConfig{}
	_, err = NewSink(context.Background(), cfg)
	assert.Error(t, err)
}
