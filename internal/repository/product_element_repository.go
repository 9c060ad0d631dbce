package repository

import (
	"context"

	"workbench-backend/internal/domain"
	"workbench-backend/internal/sequence"
	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProductElementRepository manages product elements, their documents and the
// product-element side of work-item links.
type ProductElementRepository struct {
	base
}

// NewProductElementRepository creates a product element repository.
func NewProductElementRepository(s store.Store, ids IDGenerator, cfg Config, logger *zap.Logger, opts ...Option) *ProductElementRepository {
	return &ProductElementRepository{base: newBase(s, ids, cfg, logger, opts)}
}

// AddProductElement creates a product element and returns its id. Client and
// parent names are denormalized onto the item; a missing client or parent,
// or a parent owned by another client, is rejected.
func (r *ProductElementRepository) AddProductElement(ctx context.Context, pe domain.ProductElement) (int64, error) {
	if err := domain.ValidateStruct(pe); err != nil {
		return 0, err
	}

	clientName, err := lookupClientName(ctx, r.store, pe.ClientID)
	if err != nil {
		return 0, err
	}
	pe.ClientName = clientName

	if pe.IsTopLevel() {
		pe.ParentName = domain.TopLevelParentName
	} else {
		parent, err := r.getMetadata(ctx, pe.ParentID)
		if err != nil {
			return 0, err
		}
		if parent.ClientID != pe.ClientID {
			return 0, appErrors.NewValidationf("parent product element %d belongs to client %d", pe.ParentID, parent.ClientID)
		}
		pe.ParentName = parent.Name
	}

	id, err := r.ids.Next(ctx, sequence.ProductElement)
	if err != nil {
		return 0, err
	}
	pe.ID = id

	item, err := marshal(productElementToRecord(pe))
	if err != nil {
		return 0, err
	}
	if err := r.store.PutItem(ctx, item, store.ItemNotExists()); err != nil {
		return 0, appErrors.Wrap(err, "add product element")
	}

	r.logger.Info("product element created",
		zap.Int64("product_element_id", id),
		zap.Int64("client_id", pe.ClientID),
		zap.Int64("parent_id", pe.ParentID))
	return id, nil
}

func productElementToRecord(pe domain.ProductElement) productElementRecord {
	key := MetadataKey(PrefixProductElement, pe.ID)
	return productElementRecord{
		PK:          key.PK,
		SK:          key.SK,
		EntityID:    pe.ID,
		Name:        pe.Name,
		Description: pe.Description,
		ClientKey:   PartitionKey(PrefixClient, pe.ClientID),
		ClientID:    pe.ClientID,
		ClientName:  pe.ClientName,
		ParentID:    pe.ParentID,
		ParentName:  pe.ParentName,
		// Product elements have no lifecycle and are always active.
		SearchKey: SearchKey(pe.ParentID, true, key.PK),
	}
}

func (r *ProductElementRepository) getMetadata(ctx context.Context, id int64) (domain.ProductElement, error) {
	item, err := r.store.GetItem(ctx, MetadataKey(PrefixProductElement, id))
	if appErrors.IsNotFound(err) {
		return domain.ProductElement{}, errProductElementNotFound(id)
	}
	if err != nil {
		return domain.ProductElement{}, err
	}
	var rec productElementRecord
	if err := unmarshal(item, &rec); err != nil {
		return domain.ProductElement{}, err
	}
	return rec.toDomain(), nil
}

// GetProductElementByID returns the element with its documents and direct
// children. Deeper levels are left to the caller.
func (r *ProductElementRepository) GetProductElementByID(ctx context.Context, id int64) (*domain.ProductElement, error) {
	if err := validateID("product element", id); err != nil {
		return nil, err
	}
	pe, err := r.getMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pe.Documents, err = r.GetProductElementDocuments(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		pe.Children, err = r.GetChildProductElements(gctx, pe)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &pe, nil
}

// GetProductElementsForClient lists a client's top-level elements, or every
// element at any depth.
func (r *ProductElementRepository) GetProductElementsForClient(ctx context.Context, clientID int64, topLevelOnly bool) ([]domain.ProductElement, error) {
	in := store.QueryInput{
		Index:          r.cfg.ClientEntityIndex,
		PartitionValue: PartitionKey(PrefixClient, clientID),
		Sort:           store.BeginsWith(EntityPrefix(PrefixProductElement)),
	}
	if topLevelOnly {
		in.Index = r.cfg.ClientSearchIndex
		in.Sort = store.BeginsWith(ChildrenPrefix(domain.TopLevelParentID, PrefixProductElement))
	}
	return r.queryElements(ctx, in)
}

// GetChildProductElements lists the direct children of parent.
func (r *ProductElementRepository) GetChildProductElements(ctx context.Context, parent domain.ProductElement) ([]domain.ProductElement, error) {
	return r.queryElements(ctx, store.QueryInput{
		Index:          r.cfg.ClientSearchIndex,
		PartitionValue: PartitionKey(PrefixClient, parent.ClientID),
		Sort:           store.BeginsWith(ChildrenPrefix(parent.ID, PrefixProductElement)),
	})
}

func (r *ProductElementRepository) queryElements(ctx context.Context, in store.QueryInput) ([]domain.ProductElement, error) {
	items, err := r.store.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	elements, err := decodeAll(items, productElementRecord.toDomain)
	if err != nil {
		return nil, err
	}
	sortByID(elements, func(p domain.ProductElement) int64 { return p.ID })
	return elements, nil
}

// GetProductElementTree assembles every element of a client into nested
// trees from a single index query. Elements whose parent is missing are
// treated as roots.
func (r *ProductElementRepository) GetProductElementTree(ctx context.Context, clientID int64) ([]domain.ProductElementNode, error) {
	elements, err := r.GetProductElementsForClient(ctx, clientID, false)
	if err != nil {
		return nil, err
	}

	present := make(map[int64]bool, len(elements))
	for _, pe := range elements {
		present[pe.ID] = true
	}
	children := make(map[int64][]domain.ProductElement)
	var roots []domain.ProductElement
	for _, pe := range elements {
		if pe.IsTopLevel() || !present[pe.ParentID] {
			roots = append(roots, pe)
			continue
		}
		children[pe.ParentID] = append(children[pe.ParentID], pe)
	}

	var build func(pe domain.ProductElement, level int, seen map[int64]bool) domain.ProductElementNode
	build = func(pe domain.ProductElement, level int, seen map[int64]bool) domain.ProductElementNode {
		node := domain.ProductElementNode{ProductElement: pe, Level: level}
		seen[pe.ID] = true
		for _, child := range children[pe.ID] {
			if seen[child.ID] {
				continue
			}
			node.Children = append(node.Children, build(child, level+1, seen))
		}
		return node
	}

	seen := make(map[int64]bool, len(elements))
	tree := make([]domain.ProductElementNode, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, build(root, 0, seen))
	}
	return tree, nil
}

// AddProductElementDocument creates a document under an existing element.
func (r *ProductElementRepository) AddProductElementDocument(ctx context.Context, doc domain.ProductElementDocument) (int64, error) {
	if err := domain.ValidateStruct(doc); err != nil {
		return 0, err
	}

	id, err := r.ids.Next(ctx, sequence.ProductElementDocument)
	if err != nil {
		return 0, err
	}

	owner := MetadataKey(PrefixProductElement, doc.ProductElementID)
	item, err := marshal(documentRecord{
		PK:        owner.PK,
		SK:        DocumentSortKey(id),
		EntityID:  id,
		OwnerID:   doc.ProductElementID,
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
			return 0, addChildFailed(ctx, r.store, owner, errProductElementNotFound(doc.ProductElementID),
				"product element document %d already exists", id)
		}
		return 0, appErrors.Wrap(err, "add product element document")
	}
	return id, nil
}

// UpdateProductElementDocument rewrites an existing document.
func (r *ProductElementRepository) UpdateProductElementDocument(ctx context.Context, doc domain.ProductElementDocument) error {
	if err := domain.ValidateStruct(doc); err != nil {
		return err
	}
	key := store.Key{PK: PartitionKey(PrefixProductElement, doc.ProductElementID), SK: DocumentSortKey(doc.ID)}
	err := r.store.UpdateItem(ctx, key, documentUpdate(doc.Document, r.timestamp()))
	return notFoundOnCondition(err, "product element document %d not found", doc.ID)
}

// GetProductElementDocuments lists an element's documents by id.
func (r *ProductElementRepository) GetProductElementDocuments(ctx context.Context, peID int64) ([]domain.ProductElementDocument, error) {
	items, err := r.queryPartition(ctx, PartitionKey(PrefixProductElement, peID), SKDocumentPrefix, false)
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll(items, func(rec documentRecord) domain.ProductElementDocument {
		return domain.ProductElementDocument{Document: rec.toDocument(), ProductElementID: peID}
	})
	if err != nil {
		return nil, err
	}
	sortByID(docs, func(d domain.ProductElementDocument) int64 { return d.ID })
	return docs, nil
}

// GetProductElementDocumentByID returns one product element document.
func (r *ProductElementRepository) GetProductElementDocumentByID(ctx context.Context, peID, docID int64) (*domain.ProductElementDocument, error) {
	item, err := r.store.GetItem(ctx, store.Key{PK: PartitionKey(PrefixProductElement, peID), SK: DocumentSortKey(docID)})
	if appErrors.IsNotFound(err) {
		return nil, appErrors.NewNotFoundf("product element document %d not found", docID)
	}
	if err != nil {
		return nil, err
	}
	var rec documentRecord
	if err := unmarshal(item, &rec); err != nil {
		return nil, err
	}
	return &domain.ProductElementDocument{Document: rec.toDocument(), ProductElementID: peID}, nil
}

// GetProductElementsForWorkItem resolves the work item's link items and
// batch-reads the linked elements. No links means no second call.
func (r *ProductElementRepository) GetProductElementsForWorkItem(ctx context.Context, workItemID int64) ([]domain.ProductElement, error) {
	ids, err := linkedIDs(ctx, r.store, PartitionKey(PrefixWorkItem, workItemID), PrefixProductElement)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.ProductElement{}, nil
	}

	keys := make([]store.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, MetadataKey(PrefixProductElement, id))
	}
	items, err := r.store.BatchGetItems(ctx, keys)
	if err != nil {
		return nil, err
	}
	elements, err := decodeAll(items, productElementRecord.toDomain)
	if err != nil {
		return nil, err
	}
	sortByID(elements, func(p domain.ProductElement) int64 { return p.ID })
	return elements, nil
}

// GetWorkItemIDsForProductElement reads the mirror side of the links.
func (r *ProductElementRepository) GetWorkItemIDsForProductElement(ctx context.Context, peID int64) ([]int64, error) {
	return linkedIDs(ctx, r.store, PartitionKey(PrefixProductElement, peID), PrefixWorkItem)
}

// linkedIDs lists the ids referenced by link items in partition pk whose
// sort keys carry the other side's prefix.
func linkedIDs(ctx context.Context, s store.Store, pk, otherPrefix string) ([]int64, error) {
	items, err := s.Query(ctx, store.QueryInput{
		PartitionValue: pk,
		Sort:           store.BeginsWith(EntityPrefix(otherPrefix)),
		Projection:     []string{store.AttrSK},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := ParseID(store.StringAttr(item, store.AttrSK), otherPrefix)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sortByID(ids, func(id int64) int64 { return id })
	return ids, nil
}

// lookupClientName reads a client's name, failing NotFound if absent.
func lookupClientName(ctx context.Context, s store.Store, clientID int64) (string, error) {
	item, err := s.GetItem(ctx, MetadataKey(PrefixClient, clientID), AttrName)
	if appErrors.IsNotFound(err) {
		return "", errClientNotFound(clientID)
	}
	if err != nil {
		return "", err
	}
	return store.StringAttr(item, AttrName), nil
}
