package app

import (
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/partsdesk-backend/pkg/config"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
)

func TestBuildRequiresResources(t *testing.T) {
	_, err := Build(Params{})
	require.Error(t, err)
}

func TestBuildWiresServices(t *testing.T) {
	svcs, err := Build(Params{
		Config:     &config.Config{JWT: config.JWTConfig{Secret: "s", ExpirationMinutes: 5}},
		Logger:     logger.New(logger.Options{ServiceName: "app-test", Level: zerolog.Disabled, Output: io.Discard}),
		DB:         dbtest.Open(t),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	assert.NotNil(t, svcs.Window)
	assert.NotNil(t, svcs.Ledger)
	assert.NotNil(t, svcs.Catalog)
	assert.NotNil(t, svcs.Sales)
	assert.NotNil(t, svcs.Cart)
	assert.NotNil(t, svcs.Transfer)
	assert.NotNil(t, svcs.Users)
	assert.NotNil(t, svcs.Auth)
}
