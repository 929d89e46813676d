package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&bad=x&big=900", nil)

	v, err := ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	v, err = ParseQueryInt(req, "missing", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseQueryInt(req, "bad", 10, 1, 100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = ParseQueryInt(req, "big", 10, 1, 100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseUUIDs(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?engine_id="+id.String()+"&category_id=nope", nil)

	got, err := ParseOptionalUUID(req, "engine_id")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, *got)

	got, err = ParseOptionalUUID(req, "supplier_id")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseOptionalUUID(req, "category_id")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	rc := chi.NewRouteContext()
	rc.URLParams.Add("id", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	pathID, err := ParsePathUUID(req, "id")
	require.NoError(t, err)
	assert.Equal(t, id, pathID)

	_, err = ParsePathUUID(req, "other")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))
	var dst body
	err := DecodeJSONBody(req, &dst)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"name": "is required"}, typed.Details())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	assert.True(t, pkgerrors.Is(DecodeJSONBody(req, &dst), pkgerrors.CodeValidation))
}
