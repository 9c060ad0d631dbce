package repository

import (
	"context"
	"time"

	"workbench-backend/internal/cache"
	"workbench-backend/internal/domain"
	"workbench-backend/internal/sequence"
	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ClientRepository manages clients, their documents and their summaries.
type ClientRepository struct {
	base
	clients *cache.ListCache[domain.Client]
}

// NewClientRepository creates a client repository. clients caches the
// active-client list and is invalidated on every client write.
func NewClientRepository(s store.Store, ids IDGenerator, clients *cache.ListCache[domain.Client], cfg Config, logger *zap.Logger, opts ...Option) *ClientRepository {
	if clients == nil {
		clients = cache.NewListCache[domain.Client]("clients", cache.DefaultTTL)
	}
	return &ClientRepository{
		base:    newBase(s, ids, cfg, logger, opts),
		clients: clients,
	}
}

// AddClient creates an active client and returns its id.
func (r *ClientRepository) AddClient(ctx context.Context, name string) (int64, error) {
	if err := domain.ValidateStruct(domain.Client{Name: name}); err != nil {
		return 0, err
	}

	id, err := r.ids.Next(ctx, sequence.Client)
	if err != nil {
		return 0, err
	}

	key := MetadataKey(PrefixClient, id)
	item, err := marshal(clientRecord{
		PK:           key.PK,
		SK:           key.SK,
		EntityID:     id,
		Name:         name,
		IsActive:     true,
		CreatedAt:    FormatTimestamp(r.timestamp()),
		ActiveClient: ActiveClientMarker,
	})
	if err != nil {
		return 0, err
	}

	if err := r.store.PutItem(ctx, item, store.ItemNotExists()); err != nil {
		return 0, appErrors.Wrap(err, "add client")
	}
	r.clients.Invalidate()

	r.logger.Info("client created", zap.Int64("client_id", id))
	return id, nil
}

// GetClientByID returns the client with its documents and summaries.
func (r *ClientRepository) GetClientByID(ctx context.Context, id int64) (*domain.Client, error) {
	if err := validateID("client", id); err != nil {
		return nil, err
	}

	var (
		client    domain.Client
		documents []domain.ClientDocument
		summaries []domain.ClientSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		item, err := r.store.GetItem(gctx, MetadataKey(PrefixClient, id))
		if appErrors.IsNotFound(err) {
			return errClientNotFound(id)
		}
		if err != nil {
			return err
		}
		var rec clientRecord
		if err := unmarshal(item, &rec); err != nil {
			return err
		}
		client = rec.toDomain()
		return nil
	})
	g.Go(func() error {
		var err error
		documents, err = r.GetClientDocuments(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		summaries, err = r.GetClientSummaries(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	client.Documents = documents
	client.Summaries = summaries
	return &client, nil
}

// GetClientName reads only the client's name.
func (r *ClientRepository) GetClientName(ctx context.Context, id int64) (string, error) {
	return lookupClientName(ctx, r.store, id)
}

// GetClients returns the active clients in creation order, from the list
// cache when it is fresh.
func (r *ClientRepository) GetClients(ctx context.Context) ([]domain.Client, error) {
	clients, gen, ok := r.clients.Get()
	if ok {
		return clients, nil
	}

	items, err := r.store.Query(ctx, store.QueryInput{
		Index:          r.cfg.ActiveClientIndex,
		PartitionValue: ActiveClientMarker,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "list clients")
	}

	clients, err = decodeAll(items, clientRecord.toDomain)
	if err != nil {
		return nil, err
	}
	r.clients.Set(clients, gen)
	return clients, nil
}

// UpdateClient rewrites name and active flag of an existing client. The
// active-client marker follows the flag so inactive clients leave the index.
func (r *ClientRepository) UpdateClient(ctx context.Context, client domain.Client) error {
	if err := validateID("client", client.ID); err != nil {
		return err
	}
	if err := domain.ValidateStruct(client); err != nil {
		return err
	}

	upd := store.Update{
		Set: map[string]any{
			AttrName:     client.Name,
			AttrIsActive: client.IsActive,
		},
		Conditions: []store.Condition{store.ItemExists()},
	}
	if client.IsActive {
		upd.Set[AttrActiveClient] = ActiveClientMarker
	} else {
		upd.Remove = []string{AttrActiveClient}
	}

	err := r.store.UpdateItem(ctx, MetadataKey(PrefixClient, client.ID), upd)
	if err != nil {
		return notFoundOnCondition(err, "client %d not found", client.ID)
	}
	r.clients.Invalidate()
	return nil
}

// AddClientDocument creates a document under an existing client.
func (r *ClientRepository) AddClientDocument(ctx context.Context, doc domain.ClientDocument) (int64, error) {
	if err := domain.ValidateStruct(doc); err != nil {
		return 0, err
	}

	id, err := r.ids.Next(ctx, sequence.ClientDocument)
	if err != nil {
		return 0, err
	}

	owner := MetadataKey(PrefixClient, doc.ClientID)
	item, err := marshal(documentRecord{
		PK:        owner.PK,
		SK:        DocumentSortKey(id),
		EntityID:  id,
		OwnerID:   doc.ClientID,
		Name:      doc.Name,
		Type:      doc.Type,
		Content:   doc.Content,
		UpdatedAt: FormatTimestamp(r.timestamp()),
	})
	if err != nil {
		return 0, err
	}

	if err := addChild(ctx, r.store, owner, item); err != nil {
		if store.IsConditionFailed(err) {
			return 0, addChildFailed(ctx, r.store, owner, errClientNotFound(doc.ClientID), "client document %d already exists", id)
		}
		return 0, appErrors.Wrap(err, "add client document")
	}
	return id, nil
}

// UpdateClientDocument rewrites an existing client document.
func (r *ClientRepository) UpdateClientDocument(ctx context.Context, doc domain.ClientDocument) error {
	if err := domain.ValidateStruct(doc); err != nil {
		return err
	}
	key := store.Key{PK: PartitionKey(PrefixClient, doc.ClientID), SK: DocumentSortKey(doc.ID)}
	err := r.store.UpdateItem(ctx, key, documentUpdate(doc.Document, r.timestamp()))
	return notFoundOnCondition(err, "client document %d not found", doc.ID)
}

// GetClientDocuments lists a client's documents by id.
func (r *ClientRepository) GetClientDocuments(ctx context.Context, clientID int64) ([]domain.ClientDocument, error) {
	items, err := r.queryPartition(ctx, PartitionKey(PrefixClient, clientID), SKDocumentPrefix, false)
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll(items, func(rec documentRecord) domain.ClientDocument {
		return domain.ClientDocument{Document: rec.toDocument(), ClientID: clientID}
	})
	if err != nil {
		return nil, err
	}
	sortByID(docs, func(d domain.ClientDocument) int64 { return d.ID })
	return docs, nil
}

// GetClientDocumentByID returns one client document.
func (r *ClientRepository) GetClientDocumentByID(ctx context.Context, clientID, docID int64) (*domain.ClientDocument, error) {
	item, err := r.store.GetItem(ctx, store.Key{PK: PartitionKey(PrefixClient, clientID), SK: DocumentSortKey(docID)})
	if appErrors.IsNotFound(err) {
		return nil, appErrors.NewNotFoundf("client document %d not found", docID)
	}
	if err != nil {
		return nil, err
	}
	var rec documentRecord
	if err := unmarshal(item, &rec); err != nil {
		return nil, err
	}
	return &domain.ClientDocument{Document: rec.toDocument(), ClientID: clientID}, nil
}

// AddClientSummary stores a new summary keyed by the current time.
func (r *ClientRepository) AddClientSummary(ctx context.Context, clientID int64, content string) (domain.ClientSummary, error) {
	if err := validateID("client", clientID); err != nil {
		return domain.ClientSummary{}, err
	}

	createdAt := r.timestamp()
	owner := MetadataKey(PrefixClient, clientID)
	item, err := marshal(summaryRecord{
		PK:        owner.PK,
		SK:        SummarySortKey(createdAt),
		ClientID:  clientID,
		Content:   content,
		CreatedAt: FormatTimestamp(createdAt),
	})
	if err != nil {
		return domain.ClientSummary{}, err
	}

	if err := addChild(ctx, r.store, owner, item); err != nil {
		if store.IsConditionFailed(err) {
			return domain.ClientSummary{}, addChildFailed(ctx, r.store, owner, errClientNotFound(clientID),
				"client %d already has a summary at %s", clientID, FormatTimestamp(createdAt))
		}
		return domain.ClientSummary{}, appErrors.Wrap(err, "add client summary")
	}
	return domain.ClientSummary{ClientID: clientID, Content: content, CreatedAt: createdAt}, nil
}

// GetClientSummaries lists a client's summaries, newest first.
func (r *ClientRepository) GetClientSummaries(ctx context.Context, clientID int64) ([]domain.ClientSummary, error) {
	items, err := r.queryPartition(ctx, PartitionKey(PrefixClient, clientID), SKSummaryPrefix, true)
	if err != nil {
		return nil, err
	}
	return decodeAll(items, summaryRecord.toDomain)
}

// GetLatestClientSummary returns the newest summary of a client.
func (r *ClientRepository) GetLatestClientSummary(ctx context.Context, clientID int64) (*domain.ClientSummary, error) {
	summaries, err := r.GetClientSummaries(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, appErrors.NewNotFoundf("client %d has no summaries", clientID)
	}
	return &summaries[0], nil
}

// UpdateClientSummary rewrites the content of the summary identified by its
// creation time. It never creates a summary.
func (r *ClientRepository) UpdateClientSummary(ctx context.Context, summary domain.ClientSummary) error {
	if err := domain.ValidateStruct(summary); err != nil {
		return err
	}
	key := store.Key{PK: PartitionKey(PrefixClient, summary.ClientID), SK: SummarySortKey(summary.CreatedAt)}
	err := r.store.UpdateItem(ctx, key, store.Update{
		Set:        map[string]any{"Content": summary.Content},
		Conditions: []store.Condition{store.ItemExists()},
	})
	return notFoundOnCondition(err, "client summary %s not found", FormatTimestamp(summary.CreatedAt))
}

// addChild writes a new child item only if its owner's metadata exists.
func addChild(ctx context.Context, s store.Store, owner store.Key, item store.Item) error {
	return s.TransactWrite(ctx, []store.Operation{
		store.Check(owner, store.ItemExists()),
		store.Put(item, store.ItemNotExists()),
	})
}

// documentUpdate rewrites the editable document fields of an existing item.
func documentUpdate(doc domain.Document, now time.Time) store.Update {
	return store.Update{
		Set: map[string]any{
			AttrName:    doc.Name,
			"Type":      doc.Type,
			"Content":   doc.Content,
			"UpdatedAt": FormatTimestamp(now),
		},
		Conditions: []store.Condition{store.ItemExists()},
	}
}
