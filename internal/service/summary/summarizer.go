package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"workbench-backend/internal/domain"
	appErrors "workbench-backend/pkg/errors"

	"github.com/tmc/langchaingo/llms"
)

// Summarizer produces the AI texts stored alongside documents and clients.
type Summarizer interface {
	// Summarize labels a document in at most one sentence.
	Summarize(ctx context.Context, content string) (string, error)
	// DraftClientSummary writes a retrospective client summary from the
	// previous summary and the recent activity.
	DraftClientSummary(ctx context.Context, previous string, activity []WorkItemActivity) (string, error)
}

// WorkItemActivity is one work item with its events and documents in the
// drafting window.
type WorkItemActivity struct {
	WorkItem  domain.WorkItem
	Events    []domain.WorkItemChangeEvent
	Documents []domain.WorkItemDocument
}

// maxDocumentExcerpt bounds the document content quoted when a document has
// no summary yet.
const maxDocumentExcerpt = 1000

const documentPrompt = `You are a file and code content labeler.
Your only job is to generate a concise, user-friendly, and general-purpose label or title
that describes the provided content.
Your response must be short and informative, using sentence fragments where appropriate,
and should never exceed one complete sentence.
Do not include concluding punctuation, or any unnecessary characters.

If there's a line at the top that looks like it might be a summary,
especially if it's enclosed in triple asterisks,
that's probably a good summary.

DOCUMENT CONTENT:
---
%s
---`

const clientPrompt = `You are a professional assistant drafting a weekly client summary.

PREVIOUS SUMMARY:
%s

RECENT ACTIVITY (Organized by Work Item):
%s

Based on the previous summary and the recent activity (events and documents) organized by work item, draft a new client summary.

GUIDELINES:
- The audience is technical enough to understand details but interested in business outcomes.
- Goal: Communicate progress on business objectives and technical milestones.
- Group the summary by project or major feature. Do NOT blend all work together into a single chronological narrative.
- Use the work item names and types to provide context.
- Pay close attention to the parent/child relationships. A child item's progress should be discussed in the context of its parent project/feature when appropriate.
- Note any blockers explicitly.
- This is a RETROSPECTIVE summary. Do not speculate on future work.
- Tone: Reference the provided documents/notes for tone, but prefer simple and clear communication over "punchy" or overly corporate language.
- Output Format: Markdown. Use headers to separate distinct projects or focus areas.`

// LLM implements Summarizer on top of a langchaingo model.
type LLM struct {
	model llms.Model
}

// NewLLM wraps model.
func NewLLM(model llms.Model) *LLM {
	return &LLM{model: model}
}

func (l *LLM) Summarize(ctx context.Context, content string) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, l.model, fmt.Sprintf(documentPrompt, content),
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(1024),
	)
	if err != nil {
		return "", appErrors.NewStoreUnavailable("generate document summary", err)
	}
	return strings.TrimSpace(text), nil
}

func (l *LLM) DraftClientSummary(ctx context.Context, previous string, activity []WorkItemActivity) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, l.model, ClientPrompt(previous, activity),
		llms.WithTemperature(0.7),
		llms.WithMaxTokens(2048),
	)
	if err != nil {
		return "", appErrors.NewStoreUnavailable("generate client summary", err)
	}
	return strings.TrimSpace(text), nil
}

// ClientPrompt renders the drafting prompt. Work items without events or
// documents are left out.
func ClientPrompt(previous string, activity []WorkItemActivity) string {
	if previous == "" {
		previous = "No previous summary available."
	}

	sections := make([]string, 0, len(activity))
	for _, a := range activity {
		if len(a.Events) == 0 && len(a.Documents) == 0 {
			continue
		}
		sections = append(sections, describeActivity(a))
	}
	body := strings.Join(sections, "\n---\n")
	if body == "" {
		body = "No recent activity recorded."
	}
	return fmt.Sprintf(clientPrompt, previous, body)
}

func describeActivity(a WorkItemActivity) string {
	wi := a.WorkItem
	var b strings.Builder

	parent := " (Top-level Project)"
	if !wi.IsTopLevel() {
		name := wi.ParentName
		if name == "" {
			name = fmt.Sprintf("Work Item #%d", wi.ParentID)
		}
		parent = fmt.Sprintf(" (Parent: %s)", name)
	}
	fmt.Fprintf(&b, "### Work Item: %s [Type: %s]%s\n", wi.Name, wi.Type, parent)
	fmt.Fprintf(&b, "Status: %s\n", wi.Status)
	if wi.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", wi.Description)
	}

	if len(a.Events) > 0 {
		b.WriteString("Recent Changes:\n")
		for _, e := range a.Events {
			fmt.Fprintf(&b, "- %s: %s\n", e.CreatedAt.Format(time.RFC1123), strings.ReplaceAll(e.Content, "\n", "; "))
		}
	}
	if len(a.Documents) > 0 {
		b.WriteString("Related Documents/Notes:\n")
		for _, d := range a.Documents {
			text := d.Summary
			if text == "" {
				text = excerpt(d.Content, maxDocumentExcerpt)
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", d.Name, d.Type, text)
		}
	}
	return b.String()
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Disabled is the Summarizer used when no provider is configured. Document
// summaries come back empty; drafting a client summary is refused.
type Disabled struct{}

func (Disabled) Summarize(context.Context, string) (string, error) {
	return "", nil
}

func (Disabled) DraftClientSummary(context.Context, string, []WorkItemActivity) (string, error) {
	return "", appErrors.NewValidation("no AI provider is configured")
}
