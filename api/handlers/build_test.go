package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/blockflow/testutil"
	"github.com/BaSui01/blockflow/testutil/fixtures"
	"github.com/BaSui01/blockflow/types"
)

func newBuildMux() *http.ServeMux {
	mux := http.NewServeMux()
	NewBuildHandler(nil).Register(mux)
	return mux
}

func TestBuildHandler_Codegen(t *testing.T) {
	mux := newBuildMux()

	w := do(t, mux, http.MethodPost, "/api/v1/codegen", testutil.MustJSON(fixtures.Branching()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	want := "x = 5\n" +
		"if x > 3:\n" +
		"    print('big')\n" +
		"else:\n" +
		"    print('small')\n" +
		"print('done')\n"
	assert.Equal(t, want, decode[struct {
		Code string `json:"code"`
	}](t, w).Data.Code)
}

func TestBuildHandler_CodegenEmptyGraph(t *testing.T) {
	w := do(t, newBuildMux(), http.MethodPost, "/api/v1/codegen", `{"nodes":[],"edges":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[struct {
		Code string `json:"code"`
	}](t, w).Data.Code)
}

func TestBuildHandler_Plan(t *testing.T) {
	w := do(t, newBuildMux(), http.MethodPost, "/api/v1/plan", testutil.MustJSON(fixtures.CountingLoop()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[struct {
		Plan []json.RawMessage `json:"plan"`
		Size int               `json:"size"`
	}](t, w)
	assert.Equal(t, 3, resp.Data.Size)
	require.Len(t, resp.Data.Plan, 1, "setup is the only root")
	assert.Contains(t, string(resp.Data.Plan[0]), `"kind":"loop"`)
	assert.Contains(t, string(resp.Data.Plan[0]), `"print"`)
}

func TestBuildHandler_RejectsInvalidGraph(t *testing.T) {
	mux := newBuildMux()
	for _, path := range []string{"/api/v1/codegen", "/api/v1/plan"} {
		w := do(t, mux, http.MethodPost, path, `{"edges":[{"source":"a"}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, string(types.ErrInvalidGraph), decode[any](t, w).Error.Code, path)
	}
}
