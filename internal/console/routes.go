package console

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MateDort/switchboard/internal/courier"
	"github.com/MateDort/switchboard/internal/switchboard"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up the operator API on the gin engine.
func registerRoutes(engine *gin.Engine, opts Opts) {
	api := engine.Group("/api")

	api.GET("/sessions", handleSessionList(opts))
	api.POST("/sessions/:id/suspend", handleSessionAction(opts, "suspend"))
	api.POST("/sessions/:id/resume", handleSessionAction(opts, "resume"))
	api.DELETE("/sessions/:id", handleSessionAction(opts, "hangup"))

	if opts.Dial != nil {
		api.POST("/dial", handleDial(opts))
	}

	api.POST("/messages", handleMessage(opts))

	api.GET("/confirmations", handleConfirmationList(opts))
	api.POST("/confirmations/:key", handleConfirmationAnswer(opts))
	api.DELETE("/confirmations/:key", handleConfirmationCancel(opts))

	if opts.Scheduler != nil {
		api.GET("/callbacks", handleCallbackList(opts))
		api.POST("/callbacks", handleCallbackCreate(opts))
		api.DELETE("/callbacks/:id", handleCallbackCancel(opts))
	}

	if opts.Directory != nil {
		api.GET("/contacts", handleContactList(opts))
		api.POST("/contacts", handleContactAdd(opts))
		api.DELETE("/contacts/:number", handleContactRemove(opts))
	}
}

// sessionView is the JSON shape for one session snapshot.
type sessionView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phone_number"`
	Permission   string    `json:"permission"`
	State        string    `json:"state"`
	Primary      bool      `json:"primary"`
	ParentID     string    `json:"parent_id,omitempty"`
	Purpose      string    `json:"purpose,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func toView(s switchboard.Snapshot) sessionView {
	return sessionView{
		ID:           s.ID,
		Name:         s.Name,
		PhoneNumber:  s.PhoneNumber,
		Permission:   string(s.Permission),
		State:        string(s.State),
		Primary:      s.Primary,
		ParentID:     s.ParentID,
		Purpose:      s.Purpose,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

func handleSessionList(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeEnded := c.Query("all") == "1"
		sessions := opts.Registry.List(includeEnded)
		views := make([]sessionView, 0, len(sessions))
		for _, s := range sessions {
			views = append(views, toView(s))
		}
		c.JSON(http.StatusOK, gin.H{"sessions": views})
	}
}

// findSession resolves a path key as a session id first, then as a name.
func findSession(opts Opts, key string) (switchboard.Snapshot, bool) {
	if s, ok := opts.Registry.ByID(key); ok {
		return s, true
	}
	return opts.Registry.ByName(key)
}

func handleSessionAction(opts Opts, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := findSession(opts, c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such session"})
			return
		}

		var err error
		switch action {
		case "suspend":
			err = opts.Registry.Suspend(s.ID)
		case "resume":
			err = opts.Registry.Resume(s.ID)
		case "hangup":
			err = opts.Registry.Terminate(s.ID, switchboard.Completed, "operator hangup")
		}
		if errors.Is(err, switchboard.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		updated, _ := opts.Registry.ByID(s.ID)
		c.JSON(http.StatusOK, gin.H{"session": toView(updated)})
	}
}

func handleDial(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			To       string `json:"to"`
			Contact  string `json:"contact"`
			Purpose  string `json:"purpose" binding:"required"`
			ParentID string `json:"parent_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		to := req.To
		if to == "" && req.Contact != "" && opts.Directory != nil {
			number, err := opts.Directory.NumberByName(req.Contact)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			to = number
		}
		if to == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to or contact is required"})
			return
		}

		s, err := opts.Dial(c.Request.Context(), to, req.Purpose, req.ParentID)
		if errors.Is(err, switchboard.ErrCapacity) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"session": toView(s)})
	}
}

func handleMessage(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			From string `json:"from"`
			To   string `json:"to" binding:"required"`
			Body string `json:"body" binding:"required"`
			Kind string `json:"kind"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		kind := courier.Kind(req.Kind)
		if req.Kind == "" {
			kind = courier.KindPlain
		}

		msg := courier.NewMessage(req.From, req.To, req.Body, kind)
		outcomes := opts.Router.Route(c.Request.Context(), msg)
		c.JSON(http.StatusOK, gin.H{"message_id": msg.ID, "outcomes": outcomes})
	}
}

func handleConfirmationList(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"confirmations": opts.Router.PendingConfirmations()})
	}
}

func handleConfirmationAnswer(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Answer string `json:"answer" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := opts.Router.Answer(c.Param("key"), req.Answer); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func handleConfirmationCancel(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts.Router.Cancel(c.Param("key"))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func handleCallbackList(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := opts.Scheduler.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"callbacks": rows})
	}
}

func handleCallbackCreate(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Target string `json:"target" binding:"required"`
			Body   string `json:"body" binding:"required"`
			At     string `json:"at"`   // RFC 3339 one-shot fire time
			Cron   string `json:"cron"` // 5-field recurring expression
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var (
			id  uint
			err error
		)
		switch {
		case req.Cron != "":
			id, err = opts.Scheduler.Every(req.Cron, req.Target, req.Body)
		case req.At != "":
			fireAt, perr := time.Parse(time.RFC3339, req.At)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
				return
			}
			id, err = opts.Scheduler.At(fireAt, req.Target, req.Body)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "at or cron is required"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func handleCallbackCancel(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad callback id"})
			return
		}
		if err := opts.Scheduler.Cancel(uint(id)); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func handleContactList(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		contacts, err := opts.Directory.ListContacts()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"contacts": contacts})
	}
}

func handleContactAdd(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PhoneNumber string `json:"phone_number" binding:"required"`
			Name        string `json:"name" binding:"required"`
			Notes       string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := opts.Directory.AddContact(req.PhoneNumber, req.Name, req.Notes); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	}
}

func handleContactRemove(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := opts.Directory.RemoveContact(c.Param("number")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
