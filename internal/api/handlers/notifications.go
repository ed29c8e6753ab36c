package handlers

import (
	"net/http"

	"github.com/bigkaa/cloudfile/internal/api/routes"
	"github.com/bigkaa/cloudfile/internal/notify"
)

type notificationList struct {
	Items   []notify.Notification `json:"items"`
	LastSeq int64                 `json:"lastSeq"`
}

// ListNotifications — GET /api/v1/notifications?since=N.
// Клиент опрашивает канал, передавая lastSeq из предыдущего ответа.
func (h *APIHandler) ListNotifications(w http.ResponseWriter, _ *http.Request, params routes.ListNotificationsParams) {
	var since int64
	if params.Since != nil {
		since = *params.Since
	}

	items, lastSeq := h.bus.Poll(since)
	writeJSON(w, http.StatusOK, notificationList{Items: items, LastSeq: lastSeq})
}
