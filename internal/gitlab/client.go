// Package gitlab talks to the GitLab REST API. Merge request metadata
// and note listing go through the official client; the changes, raw
// file, and comment endpoints use a bespoke HTTP client because the
// official wrappers have lagged behind those endpoints.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"
)

// Client is a rate-limited GitLab API client scoped to one instance.
type Client struct {
	baseURL string // https://gitlab.example.com/api/v4
	token   string
	http    *http.Client
	limiter *rate.Limiter
	api     *gitlab.Client
}

// NewClient builds a client for the GitLab instance at baseURL.
func NewClient(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	api, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL+"/api/v4"))
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	return &Client{
		baseURL: baseURL + "/api/v4",
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		// GitLab.com allows bursts but throttles sustained traffic;
		// 5 rps with burst 5 stays well inside the default limits.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		api:     api,
	}, nil
}

// MergeRequest carries the MR fields the pipeline needs.
type MergeRequest struct {
	IID          int
	Title        string
	State        string
	SourceBranch string
	TargetBranch string
	HeadSHA      string
	Author       string
	WebURL       string
}

// Change is one changed file in a merge request.
type Change struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

// mrChanges is the wire shape of GET .../merge_requests/:iid/changes.
type mrChanges struct {
	Changes []Change `json:"changes"`
}

// MRVersion is one entry of the merge request versions endpoint; its
// SHAs anchor line-comment positions.
type MRVersion struct {
	ID             int    `json:"id"`
	HeadCommitSHA  string `json:"head_commit_sha"`
	BaseCommitSHA  string `json:"base_commit_sha"`
	StartCommitSHA string `json:"start_commit_sha"`
}

// Note is an existing MR note body, used for idempotency scans.
type Note struct {
	ID   int
	Body string
}

// GetMergeRequest fetches merge request metadata.
func (c *Client) GetMergeRequest(ctx context.Context, projectID string, mrIID int) (*MergeRequest, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	mr, _, err := c.api.MergeRequests.GetMergeRequest(projectID, mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching merge request %s!%d: %w", projectID, mrIID, err)
	}

	out := &MergeRequest{
		IID:          mr.IID,
		Title:        mr.Title,
		State:        mr.State,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		HeadSHA:      mr.SHA,
		WebURL:       mr.WebURL,
	}
	if mr.Author != nil {
		out.Author = mr.Author.Username
	}
	return out, nil
}

// ListChanges fetches the changed files of a merge request.
func (c *Client) ListChanges(ctx context.Context, projectID string, mrIID int) ([]Change, error) {
	path := fmt.Sprintf("/projects/%s/merge_requests/%d/changes", url.PathEscape(projectID), mrIID)

	var changes mrChanges
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &changes, http.StatusOK); err != nil {
		return nil, fmt.Errorf("fetching MR changes: %w", err)
	}
	return changes.Changes, nil
}

// GetRawFile fetches a file's content at ref. Binary content comes back
// verbatim; callers decide whether it is reviewable.
func (c *Client) GetRawFile(ctx context.Context, projectID, filePath, ref string) (string, error) {
	path := fmt.Sprintf("/projects/%s/repository/files/%s/raw",
		url.PathEscape(projectID), url.PathEscape(filePath))

	query := url.Values{"ref": {ref}}
	body, err := c.doRaw(ctx, http.MethodGet, path, query)
	if err != nil {
		return "", fmt.Errorf("fetching %s@%s: %w", filePath, ref, err)
	}
	return string(body), nil
}

// ListMRNotes returns every note on the merge request, paginating until
// GitLab stops returning results.
func (c *Client) ListMRNotes(ctx context.Context, projectID string, mrIID int) ([]Note, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var all []Note
	opt := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100, Page: 1},
	}
	for {
		notes, resp, err := c.api.Notes.ListMergeRequestNotes(projectID, mrIID, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing MR notes: %w", err)
		}
		for _, n := range notes {
			all = append(all, Note{ID: n.ID, Body: n.Body})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// CreateMRComment posts a general (file-level or summary) note.
func (c *Client) CreateMRComment(ctx context.Context, projectID string, mrIID int, body string) error {
	path := fmt.Sprintf("/projects/%s/merge_requests/%d/notes", url.PathEscape(projectID), mrIID)

	payload := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, path, nil, payload, nil, http.StatusCreated); err != nil {
		return fmt.Errorf("creating MR comment: %w", err)
	}
	return nil
}

// CreateLineComment posts a discussion anchored to a new-file line. The
// position SHAs come from the latest MR version.
func (c *Client) CreateLineComment(ctx context.Context, projectID string, mrIID int, filePath string, line int, body string) error {
	version, err := c.latestVersion(ctx, projectID, mrIID)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/projects/%s/merge_requests/%d/discussions", url.PathEscape(projectID), mrIID)
	payload := map[string]interface{}{
		"body": body,
		"position": map[string]interface{}{
			"position_type": "text",
			"base_sha":      version.BaseCommitSHA,
			"start_sha":     version.StartCommitSHA,
			"head_sha":      version.HeadCommitSHA,
			"new_path":      filePath,
			"old_path":      filePath,
			"new_line":      line,
		},
	}

	if err := c.do(ctx, http.MethodPost, path, nil, payload, nil, http.StatusCreated); err != nil {
		return fmt.Errorf("creating line comment on %s:%d: %w", filePath, line, err)
	}
	return nil
}

// latestVersion returns the most recent diff version of the MR.
func (c *Client) latestVersion(ctx context.Context, projectID string, mrIID int) (*MRVersion, error) {
	path := fmt.Sprintf("/projects/%s/merge_requests/%d/versions", url.PathEscape(projectID), mrIID)

	var versions []MRVersion
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &versions, http.StatusOK); err != nil {
		return nil, fmt.Errorf("fetching MR versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("merge request %s!%d has no diff versions", projectID, mrIID)
	}
	// GitLab returns versions newest first.
	return &versions[0], nil
}

// do performs a JSON request against the API and decodes the response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}, wantStatus int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// doRaw performs a request and returns the raw response body.
func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(msg))
	}
	return io.ReadAll(resp.Body)
}
