package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"workbench-backend/internal/domain"
	"workbench-backend/internal/repository"
	"workbench-backend/internal/sequence"
	"workbench-backend/internal/store/memory"
	appErrors "workbench-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Summarize(ctx context.Context, content string) (string, error) {
	args := m.Called(ctx, content)
	return args.String(0), args.Error(1)
}

func (m *mockSummarizer) DraftClientSummary(ctx context.Context, previous string, activity []WorkItemActivity) (string, error) {
	args := m.Called(ctx, previous, activity)
	return args.String(0), args.Error(1)
}

type env struct {
	clients   *repository.ClientRepository
	workItems *repository.WorkItemRepository
	store     *memory.Store
	clientID  int64
}

func newEnv(t *testing.T) env {
	t.Helper()
	s := memory.New()
	ids := sequence.NewGenerator(s, nil)
	cfg := repository.NewConfig("summary-test")
	logger := zap.NewNop()

	e := env{
		clients:   repository.NewClientRepository(s, ids, nil, cfg, logger),
		workItems: repository.NewWorkItemRepository(s, ids, cfg, logger),
		store:     s,
	}
	id, err := e.clients.AddClient(context.Background(), "Acme")
	require.NoError(t, err)
	e.clientID = id
	return e
}

func (e env) addProject(t *testing.T, name string) int64 {
	t.Helper()
	id, err := e.workItems.AddWorkItem(context.Background(), domain.WorkItem{
		Name: name, Type: domain.TypeProject, Status: domain.StatusNew, ClientID: e.clientID,
	})
	require.NoError(t, err)
	return id
}

func TestSaveWorkItemDocument_StoresSummary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	wi := e.addProject(t, "Launch")

	summarizer := new(mockSummarizer)
	summarizer.On("Summarize", mock.Anything, "long text").Return("Launch plan", nil).Once()
	svc := NewService(summarizer, e.workItems, e.clients, nil)

	doc, err := svc.SaveWorkItemDocument(ctx, domain.WorkItemDocument{
		Document:   domain.Document{Name: "Plan", Content: "long text"},
		WorkItemID: wi,
	})
	require.NoError(t, err)
	assert.NotZero(t, doc.ID)

	stored, err := e.workItems.GetWorkItemDocumentByID(ctx, wi, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch plan", stored.Summary)
	summarizer.AssertExpectations(t)
}

func TestSaveWorkItemDocument_DegradesWhenSummarizerFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	wi := e.addProject(t, "Launch")

	summarizer := new(mockSummarizer)
	summarizer.On("Summarize", mock.Anything, mock.Anything).Return("", errors.New("provider down"))
	svc := NewService(summarizer, e.workItems, e.clients, nil)

	doc, err := svc.SaveWorkItemDocument(ctx, domain.WorkItemDocument{
		Document:   domain.Document{Name: "Plan", Content: "v1"},
		WorkItemID: wi,
	})
	require.NoError(t, err, "the document write must not depend on the summarizer")

	doc.Content = "v2"
	_, err = svc.SaveWorkItemDocument(ctx, doc)
	require.NoError(t, err)

	stored, err := e.workItems.GetWorkItemDocumentByID(ctx, wi, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", stored.Content)
	assert.Empty(t, stored.Summary)
}

func TestSaveWorkItemDocument_EmptyContentSkipsSummarizer(t *testing.T) {
	e := newEnv(t)
	wi := e.addProject(t, "Launch")

	summarizer := new(mockSummarizer)
	svc := NewService(summarizer, e.workItems, e.clients, nil)

	_, err := svc.SaveWorkItemDocument(context.Background(), domain.WorkItemDocument{
		Document:   domain.Document{Name: "Empty"},
		WorkItemID: wi,
	})
	require.NoError(t, err)
	summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
}

func TestRefreshDocumentSummary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	wi := e.addProject(t, "Launch")
	docID, err := e.workItems.AddWorkItemDocument(ctx, domain.WorkItemDocument{
		Document:   domain.Document{Name: "Plan", Content: "body"},
		WorkItemID: wi,
	})
	require.NoError(t, err)

	summarizer := new(mockSummarizer)
	summarizer.On("Summarize", mock.Anything, "body").Return("Body label", nil).Once()
	summarizer.On("Summarize", mock.Anything, "body").Return("", errors.New("quota")).Once()
	svc := NewService(summarizer, e.workItems, e.clients, nil)

	got, err := svc.RefreshDocumentSummary(ctx, wi, docID)
	require.NoError(t, err)
	assert.Equal(t, "Body label", got)

	_, err = svc.RefreshDocumentSummary(ctx, wi, docID)
	assert.Error(t, err)

	stored, err := e.workItems.GetWorkItemDocumentByID(ctx, wi, docID)
	require.NoError(t, err)
	assert.Equal(t, "Body label", stored.Summary, "a failed refresh keeps the old summary")

	_, err = svc.RefreshDocumentSummary(ctx, wi, docID+1)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestDraftClientSummary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	changed := e.addProject(t, "Launch")
	e.addProject(t, "Idle")

	_, err := e.workItems.AddWorkItemDocument(ctx, domain.WorkItemDocument{
		Document:   domain.Document{Name: "Notes", Content: "went well"},
		WorkItemID: changed,
	})
	require.NoError(t, err)

	since := time.Now().Add(-time.Hour)
	wi, err := e.workItems.GetWorkItemByID(ctx, changed)
	require.NoError(t, err)
	wi.Status = domain.StatusBlocked
	_, err = e.workItems.UpdateWorkItem(ctx, *wi)
	require.NoError(t, err)
	until := time.Now().Add(time.Hour)

	_, err = e.clients.AddClientSummary(ctx, e.clientID, "last week")
	require.NoError(t, err)

	summarizer := new(mockSummarizer)
	summarizer.On("DraftClientSummary", mock.Anything, "last week", mock.MatchedBy(func(a []WorkItemActivity) bool {
		return len(a) == 1 && a[0].WorkItem.ID == changed && len(a[0].Events) == 1 && len(a[0].Documents) == 1
	})).Return("## Launch\nBlocked on vendor", nil).Once()
	svc := NewService(summarizer, e.workItems, e.clients, nil)

	summary, err := svc.DraftClientSummary(ctx, e.clientID, since, until)
	require.NoError(t, err)
	assert.Equal(t, "## Launch\nBlocked on vendor", summary.Content)

	latest, err := e.clients.GetLatestClientSummary(ctx, e.clientID)
	require.NoError(t, err)
	assert.Equal(t, summary.Content, latest.Content)
	summarizer.AssertExpectations(t)
}

func TestDraftClientSummary_FailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	summarizer := new(mockSummarizer)
	summarizer.On("DraftClientSummary", mock.Anything, "", mock.Anything).Return("", errors.New("provider down"))
	svc := NewService(summarizer, e.workItems, e.clients, nil)

	_, err := svc.DraftClientSummary(ctx, e.clientID, time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)

	_, err = e.clients.GetLatestClientSummary(ctx, e.clientID)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestDisabledSummarizer(t *testing.T) {
	e := newEnv(t)
	svc := NewService(nil, e.workItems, e.clients, nil)

	_, err := svc.DraftClientSummary(context.Background(), e.clientID, time.Now().Add(-time.Hour), time.Now())
	assert.True(t, appErrors.IsValidation(err))
}
