// Package client talks to the remote chat service and feeds responses
// into the local store through transactions. The client owns all network
// I/O; the store never suspends or fetches on its own. Fetch failures are
// returned to the caller and logged, never written into the store, and
// there is no internal retry: retry policy belongs to callers.
package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"chatcache/pkg/logger"
	"chatcache/pkg/models"
	"chatcache/pkg/store"
)

// Options configures the remote client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RPS/Burst bound outbound request rate.
	RPS   float64
	Burst int
	// PushQueueCapacity bounds the server-push queue (default 4096).
	PushQueueCapacity int
	// MaxPooledBufferBytes caps buffers returned to the push pool.
	MaxPooledBufferBytes int
}

// Client is the remote service collaborator for one session.
type Client struct {
	base    string
	token   string
	timeout time.Duration
	hc      *fasthttp.Client
	limiter *rate.Limiter
	store   *store.Store

	// Pushes receives server-pushed payloads; run RunPushWorker to
	// drain it into the store/staging area.
	Pushes *PushQueue
}

// New constructs a client bound to the given session store.
func New(s *store.Store, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		base:    opts.BaseURL,
		token:   opts.Token,
		timeout: timeout,
		hc:      &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		store:   s,
		Pushes:  NewPushQueue(opts.PushQueueCapacity, opts.MaxPooledBufferBytes),
	}
}

// FetchDiscussion hydrates one discussion. A "current" result is a no-op;
// a payload applies users, group, discussion and messages in one
// transaction so subscribers never see a half-hydrated discussion.
func (c *Client) FetchDiscussion(ctx context.Context, id string) error {
	body, err := c.get(ctx, "/v1/discussions/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	res, err := models.DecodeDiscussionFetch(body)
	if err != nil {
		return fmt.Errorf("discussion %s: %w", id, err)
	}
	switch r := res.(type) {
	case models.DiscussionCurrent:
		logger.Debug("discussion_current", "id", id)
		return nil
	case models.DiscussionPayload:
		c.store.AddDiscussionResponse(r)
		logger.Debug("discussion_applied", "id", id, "messages", len(r.Messages), "users", len(r.Users))
		return nil
	default:
		return fmt.Errorf("discussion %s: unknown fetch result %T", id, res)
	}
}

// FetchMe loads the authenticated user, contacts and pending requests.
func (c *Client) FetchMe(ctx context.Context) error {
	body, err := c.get(ctx, "/v1/me", nil)
	if err != nil {
		return err
	}
	var me models.MeResult
	if err := decodeJSON(body, &me); err != nil {
		return fmt.Errorf("me: %w", err)
	}
	c.store.StoreMeResult(me)
	return nil
}

// FetchFeed loads one page of a feed query and applies the items
// directly to the integrated feed.
func (c *Client) FetchFeed(ctx context.Context, q models.MainFeedQuery, cursor string) (models.FeedPage, error) {
	page, err := c.fetchFeedPage(ctx, q, cursor)
	if err != nil {
		return models.FeedPage{}, err
	}
	c.store.Update(func(tx *store.Tx) {
		for _, fi := range page.Items {
			tx.AddFeedItem(fi)
		}
	})
	return page, nil
}

// PrepareFeed loads one page of a feed query but routes the items into
// the staging area, leaving the rendered feed undisturbed until the user
// integrates them.
func (c *Client) PrepareFeed(ctx context.Context, q models.MainFeedQuery, cursor string) (models.FeedPage, error) {
	page, err := c.fetchFeedPage(ctx, q, cursor)
	if err != nil {
		return models.FeedPage{}, err
	}
	c.store.StageFeedItems(page.Items)
	return page, nil
}

// FetchInviteLink resolves an invite code and stores the result.
func (c *Client) FetchInviteLink(ctx context.Context, code string) error {
	body, err := c.get(ctx, "/v1/invites/"+url.PathEscape(code), nil)
	if err != nil {
		return err
	}
	var res models.InviteLinkResponse
	if err := decodeJSON(body, &res); err != nil {
		return fmt.Errorf("invite %s: %w", code, err)
	}
	if res.Code == "" {
		res.Code = code
	}
	c.store.AddInviteLinkResponse(res)
	return nil
}

func (c *Client) fetchFeedPage(ctx context.Context, q models.MainFeedQuery, cursor string) (models.FeedPage, error) {
	vals := url.Values{}
	vals.Set("feed_type", string(q.FeedType))
	vals.Set("type", string(q.Scope))
	if q.GroupID != "" {
		vals.Set("group_id", q.GroupID)
	}
	if q.ContactID != "" {
		vals.Set("contact_id", q.ContactID)
	}
	if q.LocationID != "" {
		vals.Set("location_id", q.LocationID)
	}
	if q.Hidden {
		vals.Set("hidden", "true")
	}
	if cursor != "" {
		vals.Set("cursor", cursor)
	}
	body, err := c.get(ctx, "/v1/feed", vals)
	if err != nil {
		return models.FeedPage{}, err
	}
	var page models.FeedPage
	if err := decodeJSON(body, &page); err != nil {
		return models.FeedPage{}, fmt.Errorf("feed page: %w", err)
	}
	page.Query = q
	return page, nil
}

// get performs a rate-limited GET and returns the response body.
func (c *Client) get(ctx context.Context, path string, vals url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	uri := c.base + path
	if len(vals) > 0 {
		uri += "?" + vals.Encode()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	if err := c.hc.DoTimeout(req, resp, timeout); err != nil {
		logger.Warn("fetch_failed", "path", path, "error", err)
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		logger.Warn("fetch_bad_status", "path", path, "status", code)
		return nil, fmt.Errorf("fetch %s: status %d", path, code)
	}
	return append([]byte(nil), resp.Body()...), nil
}
