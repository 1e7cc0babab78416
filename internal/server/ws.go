package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ButyrinIA/postadmin/internal/logger"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/pagination"
	"github.com/ButyrinIA/postadmin/internal/session"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	outboxSize = 64
)

// Client actions.
const (
	actionPaginate          = "paginate"
	actionSearch            = "search"
	actionReset             = "reset"
	actionFilterStatus      = "filterStatus"
	actionSort              = "sort"
	actionRefresh           = "refresh"
	actionGet               = "get"
	actionCreate            = "create"
	actionUpdate            = "update"
	actionDelete            = "delete"
	actionBatchUpdateStatus = "batchUpdateStatus"
)

// Server message types.
const (
	typeState        = "state"
	typeReplaceState = "replaceState"
	typeNotification = "notification"
	typePost         = "post"
)

type clientMessage struct {
	Action   string             `json:"action"`
	Page     int                `json:"page,omitempty"`
	PageSize int                `json:"pageSize,omitempty"`
	Title    *string            `json:"title,omitempty"`
	Status   *models.PostStatus `json:"status,omitempty"`
	Order    *models.SortOrder  `json:"order,omitempty"`
	ID       int64              `json:"id,omitempty"`
	// Payload carries the DTO of create, update and batchUpdateStatus.
	Payload json.RawMessage `json:"payload,omitempty"`
}

type stateView struct {
	Query      models.Query          `json:"query"`
	List       []models.Post         `json:"list"`
	Pagination pagination.Descriptor `json:"pagination"`
	Summary    string                `json:"summary"`
	TotalPages int                   `json:"totalPages"`
	Loading    bool                  `json:"loading"`
}

type notification struct {
	Level   string `json:"level"` // success or error
	Action  string `json:"action"`
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

type serverMessage struct {
	Type         string        `json:"type"`
	State        *stateView    `json:"state,omitempty"`
	URL          string        `json:"url,omitempty"`
	Notification *notification `json:"notification,omitempty"`
	Post         *models.Post  `json:"post,omitempty"`
}

func newStateView(st session.State) *stateView {
	desc := pagination.Adapt(st.Data.Pagination)
	return &stateView{
		Query:      st.Query,
		List:       st.Data.List,
		Pagination: desc,
		Summary:    desc.Summary(),
		TotalPages: desc.TotalPages(),
		Loading:    st.Loading,
	}
}

// conn owns one websocket. Only writeLoop writes to ws.
type conn struct {
	ws     *websocket.Conn
	outbox chan serverMessage
	// done is closed by the reader when the session ends, stopped by the
	// writer when it can no longer write.
	done    chan struct{}
	stopped chan struct{}
	log     *logger.Entry
}

var errConnClosed = errors.New("connection closed")

func (c *conn) send(msg serverMessage) error {
	select {
	case c.outbox <- msg:
		return nil
	case <-c.done:
	case <-c.stopped:
	}
	return errConnClosed
}

// ReplaceState forwards the address to the browser.
func (c *conn) ReplaceState(target string) error {
	return c.send(serverMessage{Type: typeReplaceState, URL: target})
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.stopped)
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.outbox:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// sessionBase is the address of the list screen the browser shows.
func sessionBase(r *http.Request) *url.URL {
	if origin, err := url.Parse(r.Header.Get("Origin")); err == nil && origin.Host != "" {
		return &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: "/posts"}
	}
	return &url.URL{Path: "/posts"}
}

// serveSession runs one admin session per connection. The initial query
// is taken from the connection's query string.
func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &conn{
		ws:      ws,
		outbox:  make(chan serverMessage, outboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	sess := session.New(s.gw, r.URL.RawQuery, c, session.Options{
		Base:            sessionBase(r),
		DefaultPageSize: s.cfg.List.DefaultPageSize,
		FetchTimeout:    s.cfg.Gateway.Timeout,
		Metrics:         s.metrics,
	})
	c.log = s.log.WithField("session", sess.ID)

	go c.writeLoop()
	defer func() {
		sess.Close()
		close(c.done)
	}()

	sess.Subscribe(func(st session.State) {
		c.send(serverMessage{Type: typeState, State: newStateView(st)})
	})
	sess.Start()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		s.dispatch(r.Context(), sess, c, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, sess *session.Session, c *conn, msg clientMessage) {
	switch msg.Action {
	case actionPaginate:
		sess.Paginate(msg.Page, msg.PageSize)
	case actionSearch:
		sess.Search(msg.Title)
	case actionReset:
		sess.Reset()
	case actionFilterStatus:
		sess.FilterStatus(msg.Status)
	case actionSort:
		sess.Sort(msg.Order)
	case actionRefresh:
		sess.Refresh()
	case actionGet, actionCreate, actionUpdate, actionDelete, actionBatchUpdateStatus:
		s.mutate(ctx, sess, c, msg)
	default:
		c.send(serverMessage{Type: typeNotification, Notification: &notification{
			Level:   "error",
			Action:  msg.Action,
			Message: "unknown action",
		}})
	}
}

// mutate runs a form submission. A failure leaves the list untouched and
// is reported so the form can stay open.
func (s *Server) mutate(ctx context.Context, sess *session.Session, c *conn, msg clientMessage) {
	if s.cfg.Gateway.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Gateway.Timeout)
		defer cancel()
	}

	var (
		id      int64
		message string
		err     error
	)
	switch msg.Action {
	case actionGet:
		var post *models.Post
		if post, err = sess.Get(ctx, msg.ID); err == nil {
			c.send(serverMessage{Type: typePost, Post: post})
			return
		}
	case actionCreate:
		var dto models.CreatePostDto
		if err = json.Unmarshal(msg.Payload, &dto); err == nil {
			var res *models.CreatePostResult
			if res, err = sess.Create(ctx, dto); err == nil {
				id, message = res.ID, "post created"
			}
		}
	case actionUpdate:
		var dto models.UpdatePostDto
		if err = json.Unmarshal(msg.Payload, &dto); err == nil {
			if msg.ID != 0 {
				dto.ID = msg.ID
			}
			id, message, err = dto.ID, "post updated", sess.Update(ctx, dto)
		}
	case actionDelete:
		id, message, err = msg.ID, "post deleted", sess.Delete(ctx, msg.ID)
	case actionBatchUpdateStatus:
		var dto models.BatchUpdatePostsStatusDto
		if err = json.Unmarshal(msg.Payload, &dto); err == nil {
			message, err = "statuses updated", sess.BatchUpdateStatus(ctx, dto)
		}
	}

	n := &notification{Level: "success", Action: msg.Action, Message: message, ID: id}
	if err != nil {
		n = &notification{Level: "error", Action: msg.Action, Message: "request failed", ID: id}
	}
	c.send(serverMessage{Type: typeNotification, Notification: n})
}
