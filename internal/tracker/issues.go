package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

const (
	issuePath     = "/rest/api/2/issue"
	issueLinkPath = "/rest/api/2/issueLink"
	searchPath    = "/rest/api/2/search"
	myselfPath    = "/rest/api/2/myself"

	relatesLink = "Relates"
	bugLabel    = "bug"
)

// ErrNotEpic is returned when a story is linked to an issue that is not an epic.
var ErrNotEpic = errors.New("issue is not an epic")

// ErrParentRequired is returned when a sub-task is created without a parent.
var ErrParentRequired = errors.New("parent key is required")

// Fields are the attributes shared by every created issue.
type Fields struct {
	Summary     string
	Description string
	Labels      []string
	Priority    string
	Assignee    string
}

// Created identifies a newly created issue.
type Created struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
	// URL is the browse address of the issue.
	URL string `json:"url"`
}

// Issue is an issue as returned by the tracker.
type Issue struct {
	ID     string         `json:"id"`
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

// TypeName returns the issue type name, e.g. "Epic" or "Sub-task".
func (i *Issue) TypeName() string { return nestedString(i.Fields, "issuetype", "name") }

// Summary returns the issue summary.
func (i *Issue) Summary() string {
	s, _ := i.Fields["summary"].(string)
	return s
}

// ParentKey returns the key of the sub-task parent, if any.
func (i *Issue) ParentKey() string { return nestedString(i.Fields, "parent", "key") }

// Status returns the status name.
func (i *Issue) Status() string { return nestedString(i.Fields, "status", "name") }

// Field returns a top-level string field such as an epic link custom field.
func (i *Issue) Field(name string) string {
	s, _ := i.Fields[name].(string)
	return s
}

func nestedString(m map[string]any, outer, inner string) string {
	sub, ok := m[outer].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := sub[inner].(string)
	return s
}

// SearchResult is one page of a JQL search.
type SearchResult struct {
	Total  int     `json:"total"`
	Issues []Issue `json:"issues"`
}

func (c *Client) createIssue(ctx context.Context, issueType string, f Fields, extra map[string]any) (Created, error) {
	fields := map[string]any{
		"project":     map[string]string{"key": c.projectKey},
		"summary":     f.Summary,
		"description": f.Description,
		"issuetype":   map[string]string{"name": issueType},
	}
	if labels := cleanLabels(f.Labels); len(labels) > 0 {
		fields["labels"] = labels
	}
	if f.Priority != "" {
		fields["priority"] = map[string]string{"name": f.Priority}
	}
	if f.Assignee != "" {
		fields["assignee"] = map[string]string{"accountId": f.Assignee}
	}
	for k, v := range extra {
		fields[k] = v
	}

	var created Created
	if err := c.do(ctx, "create issue", http.MethodPost, issuePath, map[string]any{"fields": fields}, &created, http.StatusCreated); err != nil {
		return Created{}, err
	}
	created.URL = c.BrowseURL(created.Key)
	c.logger.Info("issue created",
		zap.String("key", created.Key),
		zap.String("issue_type", issueType),
		zap.String("url", created.URL))
	return created, nil
}

// CreateEpic creates an epic. epicName defaults to the summary.
func (c *Client) CreateEpic(ctx context.Context, f Fields, epicName string) (Created, error) {
	if epicName == "" {
		epicName = f.Summary
	}
	return c.createIssue(ctx, item.TypeEpic.IssueType(), f, map[string]any{c.epicNameField: epicName})
}

// CreateStory creates a story and links it to epicKey when set. If the link
// fails the story still exists: the returned Created is populated along
// with the error.
func (c *Client) CreateStory(ctx context.Context, f Fields, epicKey string) (Created, error) {
	created, err := c.createIssue(ctx, item.TypeStory.IssueType(), f, nil)
	if err != nil || epicKey == "" {
		return created, err
	}
	if err := c.LinkToEpic(ctx, created.Key, epicKey); err != nil {
		return created, fmt.Errorf("created %s: %w", created.Key, err)
	}
	return created, nil
}

// CreateTask creates a task and links it to parentKey when set.
func (c *Client) CreateTask(ctx context.Context, f Fields, parentKey string) (Created, error) {
	return c.createLinked(ctx, item.TypeTask.IssueType(), f, parentKey)
}

// CreateBug creates a bug carrying the "bug" label and links it to
// parentKey when set.
func (c *Client) CreateBug(ctx context.Context, f Fields, parentKey string) (Created, error) {
	f.Labels = withLabel(f.Labels, bugLabel)
	return c.createLinked(ctx, item.TypeBug.IssueType(), f, parentKey)
}

// CreateSubtask creates a sub-task under parentKey.
func (c *Client) CreateSubtask(ctx context.Context, f Fields, parentKey string) (Created, error) {
	if parentKey == "" {
		return Created{}, fmt.Errorf("create subtask: %w", ErrParentRequired)
	}
	return c.createIssue(ctx, item.TypeSubtask.IssueType(), f, map[string]any{
		"parent": map[string]string{"key": parentKey},
	})
}

// CreateSubBug creates a sub-task carrying the "bug" label under parentKey.
func (c *Client) CreateSubBug(ctx context.Context, f Fields, parentKey string) (Created, error) {
	f.Labels = withLabel(f.Labels, bugLabel)
	return c.CreateSubtask(ctx, f, parentKey)
}

func (c *Client) createLinked(ctx context.Context, issueType string, f Fields, parentKey string) (Created, error) {
	created, err := c.createIssue(ctx, issueType, f, nil)
	if err != nil || parentKey == "" {
		return created, err
	}
	if err := c.LinkParentChild(ctx, parentKey, created.Key); err != nil {
		return created, fmt.Errorf("created %s: %w", created.Key, err)
	}
	return created, nil
}

// Create creates it with the call matching its variant, linking it to the
// parent it declares.
func (c *Client) Create(ctx context.Context, it item.Item) (Created, error) {
	b := it.Common()
	f := Fields{
		Summary:     b.Summary,
		Description: b.Description,
		Labels:      b.Labels,
		Priority:    b.Priority,
		Assignee:    b.Assignee,
	}
	switch v := it.(type) {
	case *item.Epic:
		return c.CreateEpic(ctx, f, v.EpicName)
	case *item.Story:
		return c.CreateStory(ctx, f, v.EpicLink)
	case *item.Task:
		return c.CreateTask(ctx, f, v.StoryLink)
	case *item.Subtask:
		return c.CreateSubtask(ctx, f, v.ParentKey)
	case *item.Bug:
		return c.CreateBug(ctx, f, v.ParentKey)
	case *item.SubBug:
		return c.CreateSubBug(ctx, f, v.ParentKey)
	}
	return Created{}, fmt.Errorf("unsupported item type %s", it.Type())
}

// GetIssue fetches the issue with key.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	if err := c.do(ctx, "get issue "+key, http.MethodGet, issuePath+"/"+url.PathEscape(key), nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// UpdateIssue sets fields on the issue with key.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	return c.do(ctx, "update issue "+key, http.MethodPut, issuePath+"/"+url.PathEscape(key),
		map[string]any{"fields": fields}, nil, http.StatusNoContent)
}

// LinkIssues creates a link of linkType from inward to outward.
func (c *Client) LinkIssues(ctx context.Context, inward, outward, linkType string) error {
	body := map[string]any{
		"type":         map[string]string{"name": linkType},
		"inwardIssue":  map[string]string{"key": inward},
		"outwardIssue": map[string]string{"key": outward},
	}
	if err := c.do(ctx, "link issues", http.MethodPost, issueLinkPath, body, nil, http.StatusCreated); err != nil {
		return err
	}
	c.logger.Info("issues linked",
		zap.String("inward", inward),
		zap.String("outward", outward),
		zap.String("link_type", linkType))
	return nil
}

// LinkToEpic sets the epic link of issueKey after confirming epicKey is an epic.
func (c *Client) LinkToEpic(ctx context.Context, issueKey, epicKey string) error {
	epic, err := c.GetIssue(ctx, epicKey)
	if err != nil {
		return err
	}
	return c.linkEpic(ctx, issueKey, epic)
}

func (c *Client) linkEpic(ctx context.Context, issueKey string, epic *Issue) error {
	if epic.TypeName() != item.TypeEpic.IssueType() {
		return fmt.Errorf("link %s to %s: %w", issueKey, epic.Key, ErrNotEpic)
	}
	return c.UpdateIssue(ctx, issueKey, map[string]any{c.epicLinkField: epic.Key})
}

// LinkParentChild attaches childKey to parentKey. A sub-task gets its parent
// field set; any other issue gets a "Relates" link.
func (c *Client) LinkParentChild(ctx context.Context, parentKey, childKey string) error {
	child, err := c.GetIssue(ctx, childKey)
	if err != nil {
		return err
	}
	if child.TypeName() == item.TypeSubtask.IssueType() {
		return c.UpdateIssue(ctx, childKey, map[string]any{
			"parent": map[string]string{"key": parentKey},
		})
	}
	return c.LinkIssues(ctx, parentKey, childKey, relatesLink)
}

// LinkToParent links childKey under parentKey, using the epic link when the
// parent is an epic.
func (c *Client) LinkToParent(ctx context.Context, childKey, parentKey string) error {
	parent, err := c.GetIssue(ctx, parentKey)
	if err != nil {
		return err
	}
	if parent.TypeName() == item.TypeEpic.IssueType() {
		return c.linkEpic(ctx, childKey, parent)
	}
	return c.LinkParentChild(ctx, parentKey, childKey)
}

// Search runs a JQL query.
func (c *Client) Search(ctx context.Context, jql string, maxResults int, fields []string) (*SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	body := map[string]any{"jql": jql, "maxResults": maxResults}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	var res SearchResult
	if err := c.do(ctx, "search issues", http.MethodPost, searchPath, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FindConflicts returns unresolved issues in the project whose summary
// matches summary.
func (c *Client) FindConflicts(ctx context.Context, summary string, limit int) ([]Issue, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, nil
	}
	jql := fmt.Sprintf(`project = %s AND summary ~ %s AND statusCategory != Done ORDER BY created DESC`,
		quoteJQL(c.projectKey), quoteJQL(summary))
	res, err := c.Search(ctx, jql, limit, []string{"summary", "issuetype", "status"})
	if err != nil {
		return nil, err
	}
	return res.Issues, nil
}

// Ping checks the credentials against the tracker.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "check connection", http.MethodGet, myselfPath, nil, nil)
}

func quoteJQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// cleanLabels trims labels and replaces inner spaces, which the tracker rejects.
func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, strings.Join(strings.Fields(l), "-"))
		}
	}
	return out
}

func withLabel(labels []string, label string) []string {
	out := append([]string(nil), labels...)
	for _, l := range out {
		if strings.EqualFold(l, label) {
			return out
		}
	}
	return append(out, label)
}
