// Copyright 2025 Strata Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package strata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataml/strata/ai/mock"
	"github.com/strataml/strata/config"
	"github.com/strataml/strata/core"
)

func inMemorySettings() *config.Settings {
	settings := config.DefaultSettings()
	settings.DBPath = ""
	settings.RedisAddr = ""
	settings.RecallPath = ""
	return settings
}

func TestNewSystemInMemory(t *testing.T) {
	sys, err := NewSystem(inMemorySettings(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer sys.Close()

	ctx := context.Background()
	mgr := sys.Manager()

	_, err = mgr.AppendTurn(ctx, "boot-ws", "boot-sess", "test-model", core.RoleUser, "hello")
	require.NoError(t, err)

	memCtx, err := mgr.RetrieveContext(ctx, "boot-ws", "boot-sess", "hello")
	require.NoError(t, err)
	require.Len(t, memCtx.RecentTurns, 1)
	assert.Equal(t, "hello", memCtx.RecentTurns[0].Content)
}

func TestSystemBuildsGatewayAndQueue(t *testing.T) {
	sys, err := NewSystem(inMemorySettings(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer sys.Close()

	gw, err := sys.NewGateway()
	require.NoError(t, err)
	defer gw.Close()
	assert.NotNil(t, gw.Routes())

	qc, err := sys.NewQueueClient()
	require.NoError(t, err)
	assert.NotNil(t, qc)
}

func TestWorkerRequiresRedis(t *testing.T) {
	sys, err := NewSystem(inMemorySettings(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer sys.Close()

	_, err = sys.NewWorker("worker-1")
	assert.Error(t, err)
}
