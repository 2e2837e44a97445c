package response

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessOmitsError(t *testing.T) {
	raw, err := json.Marshal(Success(map[string]int{"n": 1}, map[string]any{"loading": false}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"n":1},"meta":{"loading":false}}`, string(raw))
}

func TestErrorEnvelopes(t *testing.T) {
	cases := map[int]APIResponse{
		http.StatusBadRequest:          BadRequest("bad"),
		http.StatusNotFound:            NotFound("missing"),
		http.StatusConflict:            Conflict("dup"),
		http.StatusInternalServerError: InternalError("boom"),
	}
	for status, resp := range cases {
		require.NotNil(t, resp.Error)
		assert.Equal(t, status, resp.Error.Code)
		assert.Nil(t, resp.Data)
	}

	raw, err := json.Marshal(NewAppError(http.StatusGone, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":410,"message":"Gone"}}`, string(raw))
}
