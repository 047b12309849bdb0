// Post HTTP handlers.
//
// This file exposes the feed endpoints:
//   - GET /posts            (ranked feed for a time window)
//   - GET /posts/{tx_id}    (one post, its ranked replies and its work)
//
// Both accept start_timestamp and end_timestamp as integer Unix seconds.
// Omitted bounds default to the epoch and to now; proofs are counted when
// their timestamp falls inside the window, bounds included. Only responses
// with an explicit end_timestamp carry an ETag.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-powboard/internal/domain"
	"github.com/tbourn/go-powboard/internal/services"
	"github.com/tbourn/go-powboard/internal/utils"
)

// ListPostsResponse is the ranked feed.
type ListPostsResponse struct {
	Posts []domain.Post `json:"posts"`
}

// ShowPostResponse is a post with its replies and accumulated work.
type ShowPostResponse struct {
	Post    *domain.Post  `json:"post"`
	Replies []domain.Post `json:"replies"`
	// Work is the summed difficulty of proofs on the post inside the window.
	Work float64 `json:"work" example:"12.5"`
}

// parseWindow reads start_timestamp and end_timestamp. It writes a 400 and
// returns false when either is malformed or the window is inverted.
func parseWindow(c *gin.Context) (domain.Window, bool) {
	var w domain.Window
	var err error
	if w.Start, err = utils.ParseUnix(c.Query("start_timestamp")); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_timestamp must be a non-negative integer")
		return w, false
	}
	if w.End, err = utils.ParseUnix(c.Query("end_timestamp")); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end_timestamp must be a non-negative integer")
		return w, false
	}
	if !w.Start.IsZero() && !w.End.IsZero() && !w.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeInvalidWindow, "start_timestamp is after end_timestamp")
		return w, false
	}
	return w, true
}

// notModified sets a weak ETag derived from table statistics and the raw
// query, and reports whether the client's copy is current. Rows are only
// ever appended, so the statistics change with every write. Windows without
// end_timestamp end at the request time and get no ETag, and failures to
// read statistics skip revalidation as well.
func (h *Handlers) notModified(c *gin.Context, scope string) bool {
	if c.Query("end_timestamp") == "" {
		return false
	}
	st, err := h.feed.Stats(c.Request.Context())
	if err != nil {
		return false
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d:%d:%s"`, scope,
		st.Events.Count, st.Posts.MaxID, st.Proofs.MaxID, c.Request.URL.RawQuery)
	c.Header("ETag", etag)
	if etagMatch(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// etagMatch applies the weak comparison of If-None-Match: any listed tag,
// or "*", matches regardless of the W/ prefix.
func etagMatch(header, etag string) bool {
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || (tag != "" && strings.TrimPrefix(tag, "W/") == want) {
			return true
		}
	}
	return false
}

// ListPosts godoc
// @ID          listPosts
// @Summary     List posts ranked by proof of work
// @Description Returns every post boosted inside the window, highest
// @Description difficulty first, followed by the most recent unboosted posts.
// @Tags        Posts
// @Produce     json
//
// @Param       start_timestamp  query  int  false  "Window start, Unix seconds (default 0)"  minimum(0)
// @Param       end_timestamp    query  int  false  "Window end, Unix seconds (default now)"  minimum(0)
//
// @Success     200  {object}  handlers.ListPostsResponse
// @Success     304  "Not modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad window"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /posts [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	w, okWin := parseWindow(c)
	if !okWin {
		return
	}
	if h.notModified(c, "posts") {
		return
	}

	posts, err := h.feed.ListPosts(c.Request.Context(), w)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWindow) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidWindow, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	ok(c, http.StatusOK, ListPostsResponse{Posts: posts})
}

// GetPost godoc
// @ID          getPost
// @Summary     Show a post with its replies and work
// @Description Returns the post carried by tx_id, its replies ranked like the
// @Description feed, and the total difficulty of proofs on it inside the window.
// @Tags        Posts
// @Produce     json
//
// @Param       tx_id            path   string  true   "Transaction id (64 hex chars)"
// @Param       start_timestamp  query  int     false  "Window start, Unix seconds (default 0)"  minimum(0)
// @Param       end_timestamp    query  int     false  "Window end, Unix seconds (default now)"  minimum(0)
//
// @Success     200  {object}  handlers.ShowPostResponse
// @Success     304  "Not modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad window"
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /posts/{tx_id} [get]
func (h *Handlers) GetPost(c *gin.Context) {
	txID := c.Param("tx_id")
	w, okWin := parseWindow(c)
	if !okWin {
		return
	}
	if h.notModified(c, "post:"+txID) {
		return
	}

	ctx := c.Request.Context()
	p, err := h.feed.GetPost(ctx, txID, w)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
		case errors.Is(err, services.ErrInvalidWindow):
			fail(c, http.StatusBadRequest, ErrCodeInvalidWindow, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeLoadFailed, err.Error())
		}
		return
	}
	replies, err := h.feed.GetReplies(ctx, txID, w)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeLoadFailed, err.Error())
		return
	}
	if replies == nil {
		replies = []domain.Post{}
	}
	ok(c, http.StatusOK, ShowPostResponse{Post: p, Replies: replies, Work: p.Difficulty})
}
