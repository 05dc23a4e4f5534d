// Package client talks to the comment API over HTTP using the api wire types.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/api"
	"inkwell/internal/thread"
)

const DefaultTimeout = 15 * time.Second

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status int
	api.ErrorDetail
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a not_found response. A repeated delete
// of the same comment returns it, so callers can treat it as done.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == api.CodeNotFound
}

type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithUser returns a copy that identifies as userID through the gateway header.
func (c *Client) WithUser(userID string) *Client {
	cp := *c
	cp.userID = userID
	return &cp
}

// WithHTTPClient swaps the underlying http.Client, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.httpClient = hc
	return &cp
}

func (c *Client) Post(ctx context.Context, postID string) (*api.Post, error) {
	var out api.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(postID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TopLevel(ctx context.Context, postID string, skip int) (*api.TopLevelPage, error) {
	var out api.TopLevelPage
	q := url.Values{"skip": {strconv.Itoa(skip)}}
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(postID)+"/comments", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Replies(ctx context.Context, commentID string, skip int) (*api.ChildrenPage, error) {
	var out api.ChildrenPage
	q := url.Values{"skip": {strconv.Itoa(skip)}}
	if err := c.do(ctx, http.MethodGet, "/api/comments/"+url.PathEscape(commentID)+"/replies", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateComment(ctx context.Context, postID string, req api.CreateCommentRequest) (*api.CreateCommentResponse, error) {
	var out api.CreateCommentResponse
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/comments", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) (*api.DeleteCommentResponse, error) {
	var out api.DeleteCommentResponse
	if err := c.do(ctx, http.MethodDelete, "/api/comments/"+url.PathEscape(commentID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Like(ctx context.Context, postID string, liked bool) (*api.LikeResponse, error) {
	var out api.LikeResponse
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/like", nil, api.LikeRequest{Liked: &liked}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reconcile(ctx context.Context, postID string) (*api.ReconcileReport, error) {
	var out api.ReconcileReport
	if err := c.do(ctx, http.MethodPost, "/api/admin/posts/"+url.PathEscape(postID)+"/reconcile", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadTopLevel fetches the next top-level page into v.
func (c *Client) LoadTopLevel(ctx context.Context, v *thread.View, postID string) (*thread.View, error) {
	page, err := c.TopLevel(ctx, postID, v.TopLevelSkip())
	if err != nil {
		return nil, err
	}
	return v.AppendTopLevel(*page), nil
}

// LoadReplies expands commentID, or loads its next page when more is set.
func (c *Client) LoadReplies(ctx context.Context, v *thread.View, commentID string, more bool) (*thread.View, error) {
	var (
		ticket thread.Ticket
		err    error
	)
	if more {
		v, ticket, err = v.LoadMore(commentID)
	} else {
		v, ticket, err = v.Expand(commentID)
	}
	if err != nil {
		return nil, err
	}

	page, err := c.Replies(ctx, commentID, ticket.Skip)
	if err != nil {
		return nil, err
	}
	return v.ApplyChildren(ticket, *page)
}

// ExpandAll loads every reply below the loaded top-level comments, page by
// page, until no node reports more replies.
func (c *Client) ExpandAll(ctx context.Context, v *thread.View) (*thread.View, error) {
	for i := 0; i < v.Len(); i++ {
		id := v.At(i).Comment.ID
		for v.HasMoreReplies(id) {
			before := v.LoadedChildren(id)
			next, err := c.LoadReplies(ctx, v, id, true)
			if err != nil {
				return nil, err
			}
			v = next
			// 服务端没有返回新的回复，避免死循环
			if v.LoadedChildren(id) == before {
				break
			}
		}
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope api.ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
			return &APIError{Status: resp.StatusCode, ErrorDetail: api.ErrorDetail{
				Code:    api.CodeInternal,
				Message: http.StatusText(resp.StatusCode),
			}}
		}
		return &APIError{Status: resp.StatusCode, ErrorDetail: envelope.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
