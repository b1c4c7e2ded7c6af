package websocket

import (
	"context"

	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
)

// DraftView is the JSON shape of a draft pushed to UI observers
type DraftView struct {
	SessionID  string                           `json:"sessionId"`
	Header     models.ReportHeader              `json:"header"`
	Current    models.DamagedPallet             `json:"current"`
	Saved      []models.DamagedPallet           `json:"saved"`
	Positions  []models.PalletPosition          `json:"positions"`
	Markers    map[string][]models.DamageMarker `json:"markers"`
	Heights    map[string][]string              `json:"heights"`
	Layout     models.VehicleLayout             `json:"layout"`
	LastError  string                           `json:"lastError,omitempty"`
	PhotoState map[string]models.PhotoStatus    `json:"photoState"`
}

// NewDraftView flattens a draft for the wire. Photo statuses are not part of
// the pallet JSON, so they are sent separately keyed by slot.
func NewDraftView(d draft.Draft) DraftView {
	states := make(map[string]models.PhotoStatus)
	for _, slot := range d.Current.PhotoSlots() {
		ph, _ := d.Current.PhotoAt(slot)
		states[slot.String()] = ph.Status
	}
	return DraftView{
		SessionID:  d.SessionID,
		Header:     d.Header,
		Current:    d.Current,
		Saved:      d.Saved,
		Positions:  d.Positions,
		Markers:    d.Markers,
		Heights:    d.Heights,
		Layout:     d.Layout,
		LastError:  d.LastError,
		PhotoState: states,
	}
}

// FeedDrafts broadcasts every draft published by the store until ctx ends
func FeedDrafts(ctx context.Context, hub *Hub, store *draft.Store) {
	updates, cancel := store.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-updates:
			if !ok {
				return
			}
			hub.Broadcast(Message{Type: "draft_updated", SessionID: d.SessionID, Payload: NewDraftView(d)})
		}
	}
}
