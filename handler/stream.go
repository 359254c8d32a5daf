package handler

import (
	"context"
	"net/http"
	"time"

	"taskquest/dto"
	"taskquest/middleware"
	"taskquest/utils"
	"taskquest/viewmodel"

	"github.com/gin-gonic/gin"
)

const defaultKeepAlive = 15 * time.Second

// liveScreen is the part of a view model a stream drives.
type liveScreen[S any] interface {
	Start(ctx context.Context)
	State() S
	Changed() <-chan struct{}
	NextEvent(ctx context.Context) (viewmodel.Event, bool)
	Close()
}

// serveScreen streams a view model as server-sent events until the client
// goes away. The first event is "ready" with the id intents are posted to;
// then "state" carries a full snapshot after every change and "event" each
// one-shot event.
func serveScreen[S any](h *Handler, c *gin.Context, vm liveScreen[S], s screen) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	id := h.screens.add(middleware.UserID(c), s)
	defer h.screens.remove(id)

	vm.Start(ctx)
	defer vm.Close()

	events := make(chan viewmodel.Event)
	go func() {
		defer close(events)
		for {
			e, ok := vm.NextEvent(ctx)
			if !ok {
				return
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	keepAlive := h.opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"screen_id": id})
	c.SSEvent("state", vm.State())
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-vm.Changed():
			c.SSEvent("state", vm.State())
		case e, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent("event", e)
		case <-ticker.C:
			c.SSEvent("ping", h.now().Unix())
		}
		c.Writer.Flush()
	}
}

func (h *Handler) StreamHome(c *gin.Context) {
	vm := viewmodel.NewHome(h.repos, h.tasks, middleware.UserID(c), h.now)
	serveScreen(h, c, vm, homeScreen{vm})
}

func (h *Handler) StreamTask(c *gin.Context) {
	vm := viewmodel.NewTaskDetail(h.repos, h.tasks, middleware.UserID(c), c.Param("id"))
	serveScreen(h, c, vm, taskDetailScreen{vm})
}

func (h *Handler) StreamLeaderboard(c *gin.Context) {
	vm := viewmodel.NewLeaderboard(h.repos, middleware.UserID(c), h.limit(c))
	serveScreen(h, c, vm, leaderboardScreen{vm})
}

// ScreenIntent applies an intent to one of the caller's open screens. Its
// events arrive on that screen's stream.
func (h *Handler) ScreenIntent(c *gin.Context) {
	s, ok := h.screens.get(c.Param("sid"), middleware.UserID(c))
	if !ok {
		utils.NotFound(c, "Pantalla no encontrada")
		return
	}
	var in dto.Intent
	if !bind(c, &in) {
		return
	}
	respond(c, s.dispatch(c.Request.Context(), in))
}

// ScreenAttachment uploads a file through an open task screen.
func (h *Handler) ScreenAttachment(c *gin.Context) {
	s, ok := h.screens.get(c.Param("sid"), middleware.UserID(c))
	detail, isDetail := s.(taskDetailScreen)
	if !ok || !isDetail {
		utils.NotFound(c, "Pantalla no encontrada")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "Falta el archivo")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res := detail.vm.AddAttachment(c.Request.Context(), header.Filename, contentType, file)
	if res.IsError() {
		fail(c, res)
		return
	}
	a, _ := res.Value()
	c.JSON(http.StatusCreated, &utils.Response{Data: dto.ToAttachmentResponse(a)})
}
