// Package mapui contains the Datastar SSE handlers behind the map page.
//
// The page forwards pointer-move and click events as signals. Each request
// is routed to the session's highlight controller, and the handler answers
// with a patch of #info plus the highlight and overlay signals.
package mapui

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-census/internal/highlight"
	"github.com/joeblew999/plat-census/internal/humastar"
	"github.com/joeblew999/plat-census/internal/mapview"
	"github.com/joeblew999/plat-census/internal/service"
	"github.com/joeblew999/plat-census/internal/templates"
)

// InfoSelector is the element the info line is patched into.
const InfoSelector = "#info"

// MapHandler serves the map event endpoints.
type MapHandler struct {
	humastar.Handler
	sessions *service.SessionService
}

// NewMapHandler creates a map handler.
func NewMapHandler(sessions *service.SessionService, renderer *templates.Renderer) *MapHandler {
	return &MapHandler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
	}
}

func (h *MapHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/map/session", h.OpenSession, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/pointermove", h.PointerMove, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/click", h.Click, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/events", h.Events, huma.OperationTags("map"))
}

// SessionInput carries the signals Datastar appends to GET requests.
type SessionInput struct {
	Datastar string `query:"datastar" doc:"Datastar signals as JSON"`
}

// EventsInput selects the session to follow.
type EventsInput struct {
	Session string `query:"session" required:"true" doc:"Map session ID"`
}

// OpenSession resumes or creates the caller's session and sends its state.
func (h *MapHandler) OpenSession(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	id := ""
	if input.Datastar != "" {
		signals, err := humastar.ParseSignals([]byte(input.Datastar))
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
		}
		id = signals.String("session")
	}
	sess := h.sessions.Open(id)
	snap := h.sessions.Snapshot(sess)

	return h.Stream(func(sse humastar.SSE) {
		if err := h.patchInfo(sse, snap.Info); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(map[string]any{
			"session":   sess.ID,
			"highlight": snap.Highlight,
			"overlay":   snap.Overlay,
		})
	}), nil
}

// PointerMove handles a pointer-move event.
func (h *MapHandler) PointerMove(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	return h.dispatch(input, mapview.PointerMove)
}

// Click handles a click event.
func (h *MapHandler) Click(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	return h.dispatch(input, mapview.Click)
}

func (h *MapHandler) dispatch(input *humastar.SignalsInput, typ mapview.EventType) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	ev, err := eventFromSignals(signals, typ)
	if err != nil {
		return nil, err
	}

	requested := signals.String("session")
	sess := h.sessions.Open(requested)
	u := h.sessions.Dispatch(sess, ev)
	reissued := sess.ID != requested

	return h.Stream(func(sse humastar.SSE) {
		if u.InfoChanged || reissued {
			if err := h.patchInfo(sse, u.Info); err != nil {
				sse.Error(err.Error())
				return
			}
		}
		out := map[string]any{"session": sess.ID}
		if u.HighlightChanged || reissued {
			out["highlight"] = highlightID(u.Update)
			out["overlay"] = u.Overlay
		}
		sse.Signals(out)
	}), nil
}

// Events streams a session's highlight changes until the client goes away.
func (h *MapHandler) Events(ctx context.Context, input *EventsInput) (*huma.StreamResponse, error) {
	sess, ok := h.sessions.Lookup(input.Session)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	bus := h.sessions.Bus()

	return h.Stream(func(sse humastar.SSE) {
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if ev.Session != sess.ID {
					continue
				}
				if err := h.patchInfo(sse, ev.Info); err != nil {
					sse.Error(err.Error())
					return
				}
				sse.Signals(map[string]any{
					"highlight": ev.FeatureID,
					"overlay":   ev.Overlay,
				})
			}
		}
	}), nil
}

func (h *MapHandler) patchInfo(sse humastar.SSE, info string) error {
	html, err := h.Renderer.Render("info", info)
	if err != nil {
		return err
	}
	sse.Patch(html, InfoSelector)
	return nil
}

// eventFromSignals builds a map event from the page's view and pointer
// signals.
func eventFromSignals(s humastar.Signals, typ mapview.EventType) (mapview.Event, error) {
	for _, key := range []string{"x", "y", "zoom", "width", "height"} {
		if !s.Has(key) {
			return mapview.Event{}, huma.Error400BadRequest("missing signal: " + key)
		}
	}
	return mapview.Event{
		Type:     typ,
		Pixel:    mapview.Pixel{X: s.Float("x"), Y: s.Float("y")},
		Dragging: typ == mapview.PointerMove && s.Bool("dragging"),
		View: mapview.View{
			Center: orb.Point{s.Float("centerx"), s.Float("centery")},
			Zoom:   s.Float("zoom"),
			Width:  s.Float("width"),
			Height: s.Float("height"),
		},
	}, nil
}

func highlightID(u highlight.Update) string {
	if u.Highlight == nil {
		return ""
	}
	return u.Highlight.ID
}
