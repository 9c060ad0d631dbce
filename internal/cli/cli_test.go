package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"workbench-backend/internal/config"
	"workbench-backend/internal/di"
	"workbench-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedContainer returns a builder that hands out one in-memory container,
// so that state survives across command invocations.
func sharedContainer(t *testing.T) (*di.Container, Builder) {
	t.Helper()
	c, cleanup, err := di.InitializeInMemoryContainer(context.Background(), config.Default())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return c, func(context.Context, *config.Config) (*di.Container, func(), error) {
		return c, func() {}, nil
	}
}

func run(t *testing.T, build Builder, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(build)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"serve"},
		{"table", "create"},
		{"table", "describe"},
		{"client", "add"},
		{"client", "list"},
		{"client", "get"},
		{"client", "summarize"},
		{"work-item", "get"},
		{"work-item", "events"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestInvalidFormat(t *testing.T) {
	_, build := sharedContainer(t)
	_, err := run(t, build, "client", "list", "--format", "yaml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestClientCommands(t *testing.T) {
	_, build := sharedContainer(t)

	out, err := run(t, build, "client", "add", "Acme", "--format", "json")
	require.NoError(t, err)
	var added map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	id := added["id"]
	require.NotZero(t, id)

	out, err = run(t, build, "client", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Acme")

	out, err = run(t, build, "client", "get", strconv.FormatInt(id, 10), "--format", "json")
	require.NoError(t, err)
	var client domain.Client
	require.NoError(t, json.Unmarshal([]byte(out), &client))
	assert.Equal(t, "Acme", client.Name)
	assert.True(t, client.IsActive)

	_, err = run(t, build, "client", "get", "abc")
	assert.ErrorContains(t, err, "invalid id")
}

func TestClientSummarize_DisabledProvider(t *testing.T) {
	c, build := sharedContainer(t)
	id, err := c.Clients.AddClient(context.Background(), "Acme")
	require.NoError(t, err)

	_, err = run(t, build, "client", "summarize", strconv.FormatInt(id, 10))
	assert.Error(t, err)
}

func TestWorkItemCommands(t *testing.T) {
	ctx := context.Background()
	c, build := sharedContainer(t)

	clientID, err := c.Clients.AddClient(ctx, "Acme")
	require.NoError(t, err)
	wiID, err := c.WorkItems.AddWorkItem(ctx, domain.WorkItem{
		Name: "Launch", Type: domain.TypeProject, Status: domain.StatusNew, ClientID: clientID,
	})
	require.NoError(t, err)

	wi, err := c.WorkItems.GetWorkItemByID(ctx, wiID)
	require.NoError(t, err)
	wi.Status = domain.StatusBlocked
	_, err = c.WorkItems.UpdateWorkItem(ctx, *wi)
	require.NoError(t, err)

	out, err := run(t, build, "work-item", "get", strconv.FormatInt(wiID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "Launch")
	assert.Contains(t, out, "version=2")

	out, err = run(t, build, "wi", "events", strconv.FormatInt(wiID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "status: NEW → BLOCKED")
}

func TestTableCommandsNeedDynamoDB(t *testing.T) {
	_, build := sharedContainer(t)
	_, err := run(t, build, "table", "describe")
	assert.ErrorIs(t, err, errNoTable)
}
