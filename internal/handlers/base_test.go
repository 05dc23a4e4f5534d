package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/api"
	"inkwell/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWriteErrorMapsKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.Error{Kind: services.ErrValidation, Message: "body must not be empty"}, http.StatusBadRequest, api.CodeValidation},
		{"not found", &services.Error{Kind: services.ErrNotFound, Message: "comment x not found"}, http.StatusNotFound, api.CodeNotFound},
		{"forbidden", &services.Error{Kind: services.ErrForbidden, Message: "nope"}, http.StatusForbidden, api.CodeForbidden},
		{"conflict", &services.Error{Kind: services.ErrConflict, Message: "exists"}, http.StatusConflict, api.CodeConflict},
		{"wrapped not found", fmt.Errorf("outer: %w", &services.Error{Kind: services.ErrNotFound, Message: "post p not found"}), http.StatusNotFound, api.CodeNotFound},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError, api.CodeInternal},
		{"partial", &services.PartialFailure{RemovedIDs: []string{"a"}, RemainingIDs: []string{"b"}, Err: errors.New("boom")}, http.StatusInternalServerError, api.CodePartialFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			writeError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body api.ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestWriteErrorHidesInternalMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeError(c, errors.New("pq: password authentication failed"))

	assert.NotContains(t, w.Body.String(), "password")
	assert.Len(t, c.Errors, 1)
}

func TestWriteErrorPartialFailureDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeError(c, &services.PartialFailure{RemovedIDs: []string{"d", "c"}, RemainingIDs: []string{"a"}, Err: errors.New("boom")})

	var body struct {
		Error struct {
			Details api.PartialFailureDetails `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"d", "c"}, body.Error.Details.RemovedIDs)
	assert.Equal(t, []string{"a"}, body.Error.Details.RemainingIDs)
}

func TestRegisterRulesNotBlank(t *testing.T) {
	v := validator.New()
	require.NoError(t, registerRules(v))

	assert.NoError(t, v.Var("hello", "notblank"))
	assert.Error(t, v.Var("  \t\n", "notblank"))
}

func TestRegisterValidatorsOnBindingEngine(t *testing.T) {
	RegisterValidators()
	RegisterValidators()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	// 未注册的 tag 会直接 panic
	assert.NotPanics(t, func() {
		assert.Error(t, v.Var(" ", "notblank"))
	})
}
