package api

import (
	"net/http"

	"github.com/ytchou/focus-squad/internal/platform/requestctx"
)

func (h *Handler) handleRoomCatalog(w http.ResponseWriter, r *http.Request) {
	items := h.rooms.Catalog()
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{
			"id":     item.ID,
			"name":   item.Name,
			"kind":   string(item.Kind),
			"cost":   item.Cost,
			"sprite": item.Sprite,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payload})
}

func (h *Handler) handleRoomLayout(w http.ResponseWriter, r *http.Request) {
	layout, err := h.rooms.Layout(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	placements := make([]map[string]any, 0, len(layout.Placements))
	for _, placement := range layout.Placements {
		placements = append(placements, map[string]any{
			"item_id": placement.ItemID,
			"x":       placement.X,
			"y":       placement.Y,
		})
	}
	owned := layout.OwnedItemIDs
	if owned == nil {
		owned = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owned_item_ids": owned,
		"placements":     placements,
	})
}

func (h *Handler) handleBuyItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ItemID string `json:"item_id"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}

	if err := h.rooms.Buy(r.Context(), requestctx.UserIDFromContext(r.Context()), payload.ItemID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePlaceItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ItemID string `json:"item_id"`
		X      int    `json:"x"`
		Y      int    `json:"y"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}

	if err := h.rooms.Place(r.Context(), requestctx.UserIDFromContext(r.Context()), payload.ItemID, payload.X, payload.Y); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemovePlacement(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.Remove(r.Context(), requestctx.UserIDFromContext(r.Context()), r.PathValue("itemID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
