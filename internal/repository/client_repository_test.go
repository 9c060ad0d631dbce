package repository

import (
	"context"
	"testing"
	"time"

	"workbench-backend/internal/cache"
	"workbench-backend/internal/domain"
	"workbench-backend/internal/sequence"
	"workbench-backend/internal/store"
	"workbench-backend/internal/store/memory"
	appErrors "workbench-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClientRepository_AddAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.addClient(t, "Acme")

	clients, err := f.clients.GetClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, id, clients[0].ID)
	assert.Equal(t, "Acme", clients[0].Name)
	assert.True(t, clients[0].IsActive)

	require.NoError(t, f.clients.UpdateClient(ctx, domain.Client{ID: id, Name: "Acme", IsActive: false}))

	clients, err = f.clients.GetClients(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)

	item, err := f.store.GetItem(ctx, MetadataKey(PrefixClient, id))
	require.NoError(t, err)
	assert.False(t, store.HasAttr(item, AttrActiveClient), "inactive clients must leave the active index")

	require.NoError(t, f.clients.UpdateClient(ctx, domain.Client{ID: id, Name: "Acme Corp", IsActive: true}))
	clients, err = f.clients.GetClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Acme Corp", clients[0].Name)
}

func TestClientRepository_GetClientsOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.addClient(t, "Zeta")
	second := f.addClient(t, "Alpha")

	clients, err := f.clients.GetClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, []int64{first, second}, []int64{clients[0].ID, clients[1].ID})
}

func TestClientRepository_GetClientsUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClient(t, "Acme")

	_, err := f.clients.GetClients(ctx)
	require.NoError(t, err)

	f.store.SetError("Query", appErrors.NewStoreUnavailable("down", nil))
	clients, err := f.clients.GetClients(ctx)
	require.NoError(t, err, "a fresh cache must not hit the store")
	assert.Len(t, clients, 1)

	f.clients.clients.Invalidate()
	_, err = f.clients.GetClients(ctx)
	assert.True(t, appErrors.IsStoreUnavailable(err))
}

func TestClientRepository_WriteDuringListFillIsNotCached(t *testing.T) {
	ctx := context.Background()
	spy := &spyStore{Store: memory.New()}
	repo := NewClientRepository(spy, sequence.NewGenerator(spy, nil),
		cache.NewListCache[domain.Client]("clients", time.Minute), NewConfig("workbench-test"), zaptest.NewLogger(t))

	id, err := repo.AddClient(ctx, "Acme")
	require.NoError(t, err)

	spy.afterQuery = func() {
		require.NoError(t, repo.UpdateClient(ctx, domain.Client{ID: id, Name: "Acme", IsActive: false}))
	}
	clients, err := repo.GetClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1, "the list read before the update still names the client")

	clients, err = repo.GetClients(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients, "the deactivated client must not be served after invalidation")
}

func TestClientRepository_SummaryAtTakenTimeIsConflict(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := NewClientRepository(s, sequence.NewGenerator(s, nil), nil, NewConfig("workbench-test"),
		zaptest.NewLogger(t), WithClock(func() time.Time { return at }))

	id, err := repo.AddClient(ctx, "Acme")
	require.NoError(t, err)

	_, err = repo.AddClientSummary(ctx, id, "first")
	require.NoError(t, err)

	_, err = repo.AddClientSummary(ctx, id, "second")
	require.Error(t, err)
	assert.True(t, appErrors.IsConflict(err), "unexpected error: %v", err)

	_, err = repo.AddClientSummary(ctx, id+1, "orphan")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestClientRepository_GetClientByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addClient(t, "Acme")

	docID, err := f.clients.AddClientDocument(ctx, domain.ClientDocument{
		Document: domain.Document{Name: "Contract", Type: "pdf", Content: "terms"},
		ClientID: id,
	})
	require.NoError(t, err)
	_, err = f.clients.AddClientSummary(ctx, id, "first")
	require.NoError(t, err)
	_, err = f.clients.AddClientSummary(ctx, id, "second")
	require.NoError(t, err)

	client, err := f.clients.GetClientByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", client.Name)
	require.Len(t, client.Documents, 1)
	assert.Equal(t, docID, client.Documents[0].ID)
	require.Len(t, client.Summaries, 2)
	assert.Equal(t, "second", client.Summaries[0].Content, "summaries are newest first")

	_, err = f.clients.GetClientByID(ctx, 999)
	assert.True(t, appErrors.IsNotFound(err))

	name, err := f.clients.GetClientName(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", name)
}

func TestClientRepository_UpdateMissingClient(t *testing.T) {
	f := newFixture(t)
	err := f.clients.UpdateClient(context.Background(), domain.Client{ID: 404, Name: "ghost", IsActive: true})
	assert.True(t, appErrors.IsNotFound(err))
	assert.Equal(t, 0, f.store.Len(), "update must not create the client")
}

func TestClientRepository_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.clients.AddClient(ctx, "")
	assert.True(t, appErrors.IsValidation(err))

	err = f.clients.UpdateClient(ctx, domain.Client{ID: 0, Name: "x"})
	assert.True(t, appErrors.IsValidation(err))

	_, err = f.clients.AddClientSummary(ctx, -1, "x")
	assert.True(t, appErrors.IsValidation(err))

	_, err = f.clients.GetClientByID(ctx, 0)
	assert.True(t, appErrors.IsValidation(err))
	assert.Equal(t, 0, f.store.Len(), "validation happens before any store call")
}

func TestClientRepository_Documents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addClient(t, "Acme")

	_, err := f.clients.AddClientDocument(ctx, domain.ClientDocument{Document: domain.Document{Name: "x"}, ClientID: 999})
	assert.True(t, appErrors.IsNotFound(err), "documents require an existing owner")

	docID, err := f.clients.AddClientDocument(ctx, domain.ClientDocument{Document: domain.Document{Name: "Brief"}, ClientID: id})
	require.NoError(t, err)

	err = f.clients.UpdateClientDocument(ctx, domain.ClientDocument{
		Document: domain.Document{ID: docID, Name: "Brief v2", Content: "updated"},
		ClientID: id,
	})
	require.NoError(t, err)

	doc, err := f.clients.GetClientDocumentByID(ctx, id, docID)
	require.NoError(t, err)
	assert.Equal(t, "Brief v2", doc.Name)
	assert.Equal(t, "updated", doc.Content)

	_, err = f.clients.GetClientDocumentByID(ctx, id, docID+100)
	assert.True(t, appErrors.IsNotFound(err))

	err = f.clients.UpdateClientDocument(ctx, domain.ClientDocument{
		Document: domain.Document{ID: docID + 100, Name: "ghost"},
		ClientID: id,
	})
	assert.True(t, appErrors.IsNotFound(err))
}

func TestClientRepository_Summaries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addClient(t, "Acme")

	_, err := f.clients.GetLatestClientSummary(ctx, id)
	assert.True(t, appErrors.IsNotFound(err))

	created, err := f.clients.AddClientSummary(ctx, id, "draft")
	require.NoError(t, err)

	created.Content = "final"
	require.NoError(t, f.clients.UpdateClientSummary(ctx, created))

	latest, err := f.clients.GetLatestClientSummary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "final", latest.Content)
	assert.True(t, latest.CreatedAt.Equal(created.CreatedAt))

	before := f.store.Len()
	missing := domain.ClientSummary{ClientID: id, Content: "x", CreatedAt: created.CreatedAt.Add(1)}
	err = f.clients.UpdateClientSummary(ctx, missing)
	assert.True(t, appErrors.IsNotFound(err))
	assert.Equal(t, before, f.store.Len(), "summary updates never create items")
}
