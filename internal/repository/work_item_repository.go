package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"workbench-backend/internal/domain"
	"workbench-backend/internal/sequence"
	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkItemRepository manages work items, their documents, change events and
// links to product elements.
type WorkItemRepository struct {
	base
}

// NewWorkItemRepository creates a work item repository.
func NewWorkItemRepository(s store.Store, ids IDGenerator, cfg Config, logger *zap.Logger, opts ...Option) *WorkItemRepository {
	return &WorkItemRepository{base: newBase(s, ids, cfg, logger, opts)}
}

// AddWorkItem creates a work item and its product element links in one
// transaction and returns the new id.
func (r *WorkItemRepository) AddWorkItem(ctx context.Context, wi domain.WorkItem) (int64, error) {
	if err := domain.ValidateWorkItemFields(wi); err != nil {
		return 0, err
	}

	if wi.IsTopLevel() {
		wi.ParentName = domain.TopLevelParentName
	} else {
		parent, err := r.getParent(ctx, wi)
		if err != nil {
			return 0, err
		}
		wi.ParentName = parent.Name
	}

	clientName, err := lookupClientName(ctx, r.store, wi.ClientID)
	if err != nil {
		return 0, err
	}
	wi.ClientName = clientName

	links := uniqueIDs(wi.ProductElementIDs)
	if err := r.checkLinkTargets(ctx, wi.ClientID, links); err != nil {
		return 0, err
	}

	id, err := r.ids.Next(ctx, sequence.WorkItem)
	if err != nil {
		return 0, err
	}
	now := r.timestamp()
	wi.ID = id
	wi.Version = 1
	wi.CreatedAt = now
	wi.UpdatedAt = now

	item, err := marshal(workItemToRecord(wi))
	if err != nil {
		return 0, err
	}
	ops := []store.Operation{store.Put(item, store.ItemNotExists())}
	linkOps, err := addLinkOps(id, links, now)
	if err != nil {
		return 0, err
	}
	ops = append(ops, linkOps...)
	if len(ops) > store.MaxTransactItems {
		return 0, appErrors.NewValidationf("too many product element links (%d)", len(links))
	}

	if err := r.store.TransactWrite(ctx, ops); err != nil {
		if store.IsConditionFailed(err) {
			return 0, appErrors.NewTransactionFailed("a linked product element was removed concurrently", err)
		}
		return 0, appErrors.Wrap(err, "add work item")
	}

	r.logger.Info("work item created",
		zap.Int64("work_item_id", id),
		zap.Int64("client_id", wi.ClientID),
		zap.Int("links", len(links)))
	return id, nil
}

// UpdateWorkItem rewrites a work item. Status and custom field changes are
// recorded as a change event and the link set is replaced by
// wi.ProductElementIDs; metadata, event and link changes commit together.
//
// The metadata write is guarded by the version read at the start; a
// concurrent update makes it fail with TransactionFailed and the
// version-conflict code. A non-zero wi.Version must match the stored one.
//
// The returned description is empty when no tracked field changed.
func (r *WorkItemRepository) UpdateWorkItem(ctx context.Context, wi domain.WorkItem) (string, error) {
	if err := validateID("work item", wi.ID); err != nil {
		return "", err
	}
	// A zero client id is filled from the stored item.
	var skip []string
	if wi.ClientID == 0 {
		skip = append(skip, "ClientID")
	}
	if err := domain.ValidateWorkItemFields(wi, skip...); err != nil {
		return "", err
	}
	if wi.ParentID == wi.ID {
		return "", appErrors.NewValidation("a work item cannot be its own parent")
	}

	current, err := r.getMetadata(ctx, wi.ID)
	if err != nil {
		return "", err
	}
	if wi.Version != 0 && wi.Version != current.Version {
		return "", errVersionConflict(wi.ID, wi.Version, nil)
	}
	if wi.ClientID == 0 {
		wi.ClientID = current.ClientID
	}
	if wi.ClientID != current.ClientID {
		return "", appErrors.NewValidation("work items cannot move between clients")
	}

	if wi.IsTopLevel() {
		wi.ParentName = domain.TopLevelParentName
	} else {
		parent, err := r.getParent(ctx, wi)
		if err != nil {
			return "", err
		}
		wi.ParentName = parent.Name
	}

	currentLinks, err := linkedIDs(ctx, r.store, PartitionKey(PrefixWorkItem, wi.ID), PrefixProductElement)
	if err != nil {
		return "", err
	}
	added, removed := diffIDs(currentLinks, uniqueIDs(wi.ProductElementIDs))
	if err := r.checkLinkTargets(ctx, wi.ClientID, added); err != nil {
		return "", err
	}

	now := r.timestamp()
	description := describeChanges(current, wi)

	wi.ClientName = current.ClientName
	wi.CreatedAt = current.CreatedAt
	wi.UpdatedAt = now
	wi.Version = current.Version + 1

	item, err := marshal(workItemToRecord(wi))
	if err != nil {
		return "", err
	}
	ops := []store.Operation{store.Put(item, store.AttrEquals(AttrVersion, current.Version))}

	var event *domain.WorkItemChangeEvent
	if description != "" {
		event = &domain.WorkItemChangeEvent{WorkItemID: wi.ID, ClientID: wi.ClientID, Content: description, CreatedAt: now}
		evt, err := marshal(eventToRecord(*event))
		if err != nil {
			return "", err
		}
		ops = append(ops, store.Put(evt, store.ItemNotExists()))
	}

	linkOps, err := addLinkOps(wi.ID, added, now)
	if err != nil {
		return "", err
	}
	ops = append(ops, linkOps...)
	for _, peID := range removed {
		fromWI, fromPE := LinkKeys(wi.ID, peID)
		ops = append(ops, store.Delete(fromWI), store.Delete(fromPE))
	}
	if len(ops) > store.MaxTransactItems {
		return "", appErrors.NewValidationf("update touches %d items, limit is %d", len(ops), store.MaxTransactItems)
	}

	if err := r.store.TransactWrite(ctx, ops); err != nil {
		if store.IsConditionFailed(err) {
			return "", r.updateConflict(ctx, wi.ID, current.Version, err)
		}
		return "", appErrors.Wrap(err, "update work item")
	}

	r.logger.Info("work item updated",
		zap.Int64("work_item_id", wi.ID),
		zap.Int64("version", wi.Version),
		zap.Bool("changed", description != ""),
		zap.Int("links_added", len(added)),
		zap.Int("links_removed", len(removed)))

	if event != nil && r.publisher != nil {
		if err := r.publisher.PublishWorkItemChanged(ctx, *event); err != nil {
			r.logger.Warn("failed to publish work item change", zap.Int64("work_item_id", wi.ID), zap.Error(err))
		}
	}
	return description, nil
}

func workItemToRecord(wi domain.WorkItem) workItemRecord {
	key := MetadataKey(PrefixWorkItem, wi.ID)
	return workItemRecord{
		PK:           key.PK,
		SK:           key.SK,
		EntityID:     wi.ID,
		Name:         wi.Name,
		Type:         string(wi.Type),
		Status:       string(wi.Status),
		Description:  wi.Description,
		ClientKey:    PartitionKey(PrefixClient, wi.ClientID),
		ClientID:     wi.ClientID,
		ClientName:   wi.ClientName,
		ParentID:     wi.ParentID,
		ParentName:   wi.ParentName,
		SearchKey:    SearchKey(wi.ParentID, wi.IsActive(), key.PK),
		CustomFields: wi.CustomFields,
		Version:      wi.Version,
		CreatedAt:    FormatTimestamp(wi.CreatedAt),
		UpdatedAt:    FormatTimestamp(wi.UpdatedAt),
	}
}

func eventToRecord(e domain.WorkItemChangeEvent) eventRecord {
	return eventRecord{
		PK:         PartitionKey(PrefixWorkItem, e.WorkItemID),
		SK:         EventSortKey(e.CreatedAt),
		ItemType:   ItemTypeEvent,
		WorkItemID: e.WorkItemID,
		ClientID:   e.ClientID,
		Content:    e.Content,
		CreatedAt:  FormatTimestamp(e.CreatedAt),
	}
}

// addLinkOps builds, per product element, an existence check on the element
// and the put of both mirror items.
func addLinkOps(workItemID int64, peIDs []int64, now time.Time) ([]store.Operation, error) {
	ops := make([]store.Operation, 0, 3*len(peIDs))
	for _, peID := range peIDs {
		fromWI, fromPE := LinkKeys(workItemID, peID)
		a, err := marshal(linkRecord{PK: fromWI.PK, SK: fromWI.SK, CreatedAt: FormatTimestamp(now)})
		if err != nil {
			return nil, err
		}
		b, err := marshal(linkRecord{PK: fromPE.PK, SK: fromPE.SK, CreatedAt: FormatTimestamp(now)})
		if err != nil {
			return nil, err
		}
		ops = append(ops,
			store.Check(MetadataKey(PrefixProductElement, peID), store.ItemExists()),
			store.Put(a),
			store.Put(b),
		)
	}
	return ops, nil
}

// checkLinkTargets verifies that every product element exists and belongs
// to the client before a transaction links to it.
func (r *WorkItemRepository) checkLinkTargets(ctx context.Context, clientID int64, peIDs []int64) error {
	if len(peIDs) == 0 {
		return nil
	}
	keys := make([]store.Key, 0, len(peIDs))
	for _, id := range peIDs {
		keys = append(keys, MetadataKey(PrefixProductElement, id))
	}
	items, err := r.store.BatchGetItems(ctx, keys, AttrEntityID, AttrClientID)
	if err != nil {
		return err
	}

	found := make(map[int64]int64, len(items))
	for _, item := range items {
		found[store.NumberAttr(item, AttrEntityID)] = store.NumberAttr(item, AttrClientID)
	}
	for _, id := range peIDs {
		owner, ok := found[id]
		if !ok {
			return errProductElementNotFound(id)
		}
		if owner != clientID {
			return appErrors.NewValidationf("product element %d belongs to client %d", id, owner)
		}
	}
	return nil
}

// describeChanges renders one "field: old → new" line per changed status or
// custom field, in a stable order.
func describeChanges(before, after domain.WorkItem) string {
	var lines []string
	if before.Status != after.Status {
		lines = append(lines, fmt.Sprintf("status: %s → %s", before.Status, after.Status))
	}

	names := make(map[string]bool, len(before.CustomFields)+len(after.CustomFields))
	for name := range before.CustomFields {
		names[name] = true
	}
	for name := range after.CustomFields {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		old := domain.FormatFieldValue(before.CustomFields[name])
		cur := domain.FormatFieldValue(after.CustomFields[name])
		if old != cur {
			lines = append(lines, fmt.Sprintf("%s: %s → %s", name, old, cur))
		}
	}
	return strings.Join(lines, "\n")
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sortByID(out, func(id int64) int64 { return id })
	return out
}

// diffIDs returns the ids in desired but not current, and in current but not
// desired.
func diffIDs(current, desired []int64) (added, removed []int64) {
	have := make(map[int64]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	want := make(map[int64]bool, len(desired))
	for _, id := range desired {
		want[id] = true
		if !have[id] {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if !want[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// updateConflict tells a lost version race apart from a link target that
// disappeared after checkLinkTargets. The version guard wins when both fail.
func (r *WorkItemRepository) updateConflict(ctx context.Context, id, version int64, cause error) error {
	stored, err := r.getMetadata(ctx, id)
	if err != nil || stored.Version != version {
		return errVersionConflict(id, version, cause)
	}
	return appErrors.NewTransactionFailed("a linked product element was removed concurrently", cause)
}

// getParent reads wi's parent and checks that it belongs to the same client
// and may hold a child of wi's type.
func (r *WorkItemRepository) getParent(ctx context.Context, wi domain.WorkItem) (domain.WorkItem, error) {
	parent, err := r.getMetadata(ctx, wi.ParentID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if parent.ClientID != wi.ClientID {
		return domain.WorkItem{}, appErrors.NewValidationf("parent work item %d belongs to client %d", wi.ParentID, parent.ClientID)
	}
	if err := domain.ValidateParentType(wi.Type, parent.Type); err != nil {
		return domain.WorkItem{}, err
	}
	return parent, nil
}

func (r *WorkItemRepository) getMetadata(ctx context.Context, id int64) (domain.WorkItem, error) {
	item, err := r.store.GetItem(ctx, MetadataKey(PrefixWorkItem, id))
	if appErrors.IsNotFound(err) {
		return domain.WorkItem{}, errWorkItemNotFound(id)
	}
	if err != nil {
		return domain.WorkItem{}, err
	}
	var rec workItemRecord
	if err := unmarshal(item, &rec); err != nil {
		return domain.WorkItem{}, err
	}
	return rec.toDomain(), nil
}

// GetWorkItemByID returns the work item with its documents, its active
// direct children and its linked product element ids.
func (r *WorkItemRepository) GetWorkItemByID(ctx context.Context, id int64) (*domain.WorkItem, error) {
	if err := validateID("work item", id); err != nil {
		return nil, err
	}
	wi, err := r.getMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wi.Documents, err = r.GetWorkItemDocuments(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		wi.Children, err = r.GetChildWorkItems(gctx, wi, nil)
		return err
	})
	g.Go(func() error {
		var err error
		wi.ProductElementIDs, err = linkedIDs(gctx, r.store, PartitionKey(PrefixWorkItem, id), PrefixProductElement)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &wi, nil
}

// GetTopLevelWorkItemsForClient lists a client's active top-level work
// items, optionally narrowed to the given statuses.
func (r *WorkItemRepository) GetTopLevelWorkItemsForClient(ctx context.Context, clientID int64, statuses []domain.Status) ([]domain.WorkItem, error) {
	return r.queryWorkItems(ctx, store.QueryInput{
		Index:          r.cfg.ClientSearchIndex,
		PartitionValue: PartitionKey(PrefixClient, clientID),
		Sort:           store.BeginsWith(ChildrenPrefix(domain.TopLevelParentID, PrefixWorkItem)),
	}, statuses)
}

// GetChildWorkItems lists the active direct children of parent, optionally
// narrowed to the given statuses.
func (r *WorkItemRepository) GetChildWorkItems(ctx context.Context, parent domain.WorkItem, statuses []domain.Status) ([]domain.WorkItem, error) {
	return r.queryWorkItems(ctx, store.QueryInput{
		Index:          r.cfg.ClientSearchIndex,
		PartitionValue: PartitionKey(PrefixClient, parent.ClientID),
		Sort:           store.BeginsWith(ChildrenPrefix(parent.ID, PrefixWorkItem)),
	}, statuses)
}

// GetWorkItemsForClient lists every work item of a client at any depth.
// Inactive items are dropped unless includeInactive is set.
func (r *WorkItemRepository) GetWorkItemsForClient(ctx context.Context, clientID int64, includeInactive bool) ([]domain.WorkItem, error) {
	var statuses []domain.Status
	if !includeInactive {
		statuses = domain.ActiveStatuses()
	}
	return r.queryWorkItems(ctx, store.QueryInput{
		Index:          r.cfg.ClientEntityIndex,
		PartitionValue: PartitionKey(PrefixClient, clientID),
		Sort:           store.BeginsWith(EntityPrefix(PrefixWorkItem)),
	}, statuses)
}

func (r *WorkItemRepository) queryWorkItems(ctx context.Context, in store.QueryInput, statuses []domain.Status) ([]domain.WorkItem, error) {
	for _, s := range statuses {
		if !s.Valid() {
			return nil, appErrors.NewValidationf("unknown work item status %q", s)
		}
	}

	items, err := r.store.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	all, err := decodeAll(items, workItemRecord.toDomain)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, wi := range all {
		if len(statuses) == 0 || containsStatus(statuses, wi.Status) {
			out = append(out, wi)
		}
	}
	sortByID(out, func(w domain.WorkItem) int64 { return w.ID })
	return out, nil
}

func containsStatus(statuses []domain.Status, s domain.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// AddWorkItemDocument creates a document under an existing work item.
func (r *WorkItemRepository) AddWorkItemDocument(ctx context.Context, doc domain.WorkItemDocument) (int64, error) {
	if err := domain.ValidateStruct(doc); err != nil {
		return 0, err
	}

	id, err := r.ids.Next(ctx, sequence.WorkItemDocument)
	if err != nil {
		return 0, err
	}

	owner := MetadataKey(PrefixWorkItem, doc.WorkItemID)
	item, err := marshal(documentRecord{
		PK:        owner.PK,
		SK:        DocumentSortKey(id),
		EntityID:  id,
		OwnerID:   doc.WorkItemID,
		Name:      doc.Name,
		Type:      doc.Type,
		Content:   doc.Content,
		Summary:   doc.Summary,
		UpdatedAt: FormatTimestamp(r.timestamp()),
	})
	if err != nil {
		return 0, err
	}

	if err := addChild(ctx, r.store, owner, item); err != nil {
		if store.IsConditionFailed(err) {
			return 0, addChildFailed(ctx, r.store, owner, errWorkItemNotFound(doc.WorkItemID), "work item document %d already exists", id)
		}
		return 0, appErrors.Wrap(err, "add work item document")
	}
	return id, nil
}

// UpdateWorkItemDocument rewrites an existing document including its
// summary; an empty summary removes it.
func (r *WorkItemRepository) UpdateWorkItemDocument(ctx context.Context, doc domain.WorkItemDocument) error {
	if err := domain.ValidateStruct(doc); err != nil {
		return err
	}
	upd := documentUpdate(doc.Document, r.timestamp())
	if doc.Summary != "" {
		upd.Set[AttrSummary] = doc.Summary
	} else {
		upd.Remove = []string{AttrSummary}
	}
	key := store.Key{PK: PartitionKey(PrefixWorkItem, doc.WorkItemID), SK: DocumentSortKey(doc.ID)}
	err := r.store.UpdateItem(ctx, key, upd)
	return notFoundOnCondition(err, "work item document %d not found", doc.ID)
}

// SetWorkItemDocumentSummary replaces only the summary of a document.
func (r *WorkItemRepository) SetWorkItemDocumentSummary(ctx context.Context, workItemID, docID int64, summary string) error {
	upd := store.Update{Conditions: []store.Condition{store.ItemExists()}}
	if summary != "" {
		upd.Set = map[string]any{AttrSummary: summary}
	} else {
		upd.Remove = []string{AttrSummary}
	}
	key := store.Key{PK: PartitionKey(PrefixWorkItem, workItemID), SK: DocumentSortKey(docID)}
	err := r.store.UpdateItem(ctx, key, upd)
	return notFoundOnCondition(err, "work item document %d not found", docID)
}

// GetWorkItemDocuments lists a work item's documents by id.
func (r *WorkItemRepository) GetWorkItemDocuments(ctx context.Context, workItemID int64) ([]domain.WorkItemDocument, error) {
	items, err := r.queryPartition(ctx, PartitionKey(PrefixWorkItem, workItemID), SKDocumentPrefix, false)
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll(items, func(rec documentRecord) domain.WorkItemDocument {
		return domain.WorkItemDocument{Document: rec.toDocument(), WorkItemID: workItemID, Summary: rec.Summary}
	})
	if err != nil {
		return nil, err
	}
	sortByID(docs, func(d domain.WorkItemDocument) int64 { return d.ID })
	return docs, nil
}

// GetWorkItemDocumentByID returns one work item document.
func (r *WorkItemRepository) GetWorkItemDocumentByID(ctx context.Context, workItemID, docID int64) (*domain.WorkItemDocument, error) {
	item, err := r.store.GetItem(ctx, store.Key{PK: PartitionKey(PrefixWorkItem, workItemID), SK: DocumentSortKey(docID)})
	if appErrors.IsNotFound(err) {
		return nil, appErrors.NewNotFoundf("work item document %d not found", docID)
	}
	if err != nil {
		return nil, err
	}
	var rec documentRecord
	if err := unmarshal(item, &rec); err != nil {
		return nil, err
	}
	return &domain.WorkItemDocument{Document: rec.toDocument(), WorkItemID: workItemID, Summary: rec.Summary}, nil
}

// GetEventsForWorkItem lists a work item's change events, newest first.
func (r *WorkItemRepository) GetEventsForWorkItem(ctx context.Context, workItemID int64) ([]domain.WorkItemChangeEvent, error) {
	items, err := r.queryPartition(ctx, PartitionKey(PrefixWorkItem, workItemID), SKEventPrefix, true)
	if err != nil {
		return nil, err
	}
	return decodeAll(items, eventRecord.toDomain)
}

// GetEventsForRange lists the client's change events created within
// [start, end], oldest first. The index is shared by all clients, so
// filtering by client happens after the query.
func (r *WorkItemRepository) GetEventsForRange(ctx context.Context, clientID int64, start, end time.Time) ([]domain.WorkItemChangeEvent, error) {
	if end.Before(start) {
		return nil, appErrors.NewValidation("range end is before its start")
	}

	items, err := r.store.Query(ctx, store.QueryInput{
		Index:          r.cfg.ItemTypeDateIndex,
		PartitionValue: ItemTypeEvent,
		Sort:           store.Between(FormatTimestamp(start), FormatTimestamp(end)),
	})
	if err != nil {
		return nil, err
	}
	events, err := decodeAll(items, eventRecord.toDomain)
	if err != nil {
		return nil, err
	}

	out := events[:0]
	for _, e := range events {
		if e.ClientID == clientID {
			out = append(out, e)
		}
	}
	return out, nil
}
