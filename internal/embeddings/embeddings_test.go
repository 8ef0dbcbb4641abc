package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIEmbedderBatches(t *testing.T) {
	var batches []int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		batches = append(batches, len(req.Input))

		var data []string
		for i := range req.Input {
			data = append(data, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,1]}`, i, len(req.Input[i])))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":%q,"data":[%s]}`, req.Model, strings.Join(data, ","))
	}))
	defer ts.Close()

	e := NewOpenAIEmbedder("key", ts.URL, "")
	texts := make([]string, 150)
	for i := range texts {
		texts[i] = strings.Repeat("x", i)
	}
	vecs, err := e.Embed(t.Context(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 150 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	if vecs[120][0] != 120 {
		t.Errorf("vector order broken: %v", vecs[120])
	}
	if len(batches) != 2 || batches[0] != 100 || batches[1] != 50 {
		t.Errorf("batches = %v", batches)
	}
	if e.Name() != ModelTextEmbedding3Small || e.Dimensions() != 1536 {
		t.Errorf("defaults = %s/%d", e.Name(), e.Dimensions())
	}
}

type stubEmbedder struct {
	vecs [][]float32
	err  error
}

func (s stubEmbedder) Embed(context.Context, []string) ([][]float32, error) { return s.vecs, s.err }
func (s stubEmbedder) Dimensions() int                                       { return 2 }
func (s stubEmbedder) Name() string                                          { return "stub" }

func TestToChromemFunc(t *testing.T) {
	f := ToChromemFunc(stubEmbedder{vecs: [][]float32{{1, 0}}})
	v, err := f(t.Context(), "x")
	if err != nil || len(v) != 2 {
		t.Errorf("f = %v, %v", v, err)
	}

	if _, err := ToChromemFunc(stubEmbedder{})(t.Context(), "x"); err == nil {
		t.Error("expected error for empty result")
	}

	boom := errors.New("boom")
	if _, err := ToChromemFunc(stubEmbedder{err: boom})(t.Context(), "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
