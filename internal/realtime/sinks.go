package realtime

import (
	"github.com/visitorpass/desk/internal/desk"
	"github.com/visitorpass/desk/internal/toast"
)

// ViewEvent is the payload of EventViewUpdated.
type ViewEvent struct {
	Component string     `json:"component"`
	State     desk.State `json:"state"`
}

// Toasts returns a notifier that pushes toasts to the browsers of room.
func (h *Hub) Toasts(room string) toast.Notifier {
	return toast.Func(func(t toast.Toast) {
		h.Publish(room, EventToast, t)
	})
}

// Views returns a desk.ViewFunc that tells the browsers of room which component changed.
func (h *Hub) Views(room string) desk.ViewFunc {
	return func(component string, state desk.State) {
		h.Publish(room, EventViewUpdated, ViewEvent{Component: component, State: state})
	}
}
