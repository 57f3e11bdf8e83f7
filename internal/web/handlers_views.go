package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/JonMunkholm/RecordGrid/internal/core"
	"github.com/JonMunkholm/RecordGrid/internal/logging"
)

// viewResponse is the body returned by every view route that changes or
// reads view state.
type viewResponse struct {
	ID       string        `json:"id"`
	Snapshot core.Snapshot `json:"snapshot"`
}

// batchFailure is the client form of core.BatchFailure.
type batchFailure struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type batchResponse struct {
	viewResponse
	Result   core.BatchResult `json:"result"`
	Failures []batchFailure   `json:"failures"`
}

func respondView(w http.ResponseWriter, session *core.ViewSession) {
	writeJSON(w, viewResponse{ID: session.ID, Snapshot: session.Table.Snapshot()})
}

// respondBatch writes a batch outcome. A partial failure is reported with
// 207 and the per-record failures; any other error goes through respondError.
func respondBatch(w http.ResponseWriter, r *http.Request, session *core.ViewSession, result core.BatchResult, err error) {
	var batchErr *core.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		respondError(w, r, err, statusFor(err))
		return
	}

	failures := make([]batchFailure, len(result.Failed))
	for i, f := range result.Failed {
		msg := core.MapError(f.Err)
		failures[i] = batchFailure{ID: f.ID, Message: msg.Message, Code: msg.Code}
	}

	status := http.StatusOK
	if batchErr != nil {
		status = http.StatusMultiStatus
	}
	writeJSONStatus(w, status, batchResponse{
		viewResponse: viewResponse{ID: session.ID, Snapshot: session.Table.Snapshot()},
		Result:       result,
		Failures:     failures,
	})
}

// handleListViews returns the registered view definitions.
func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ListViews())
}

// handleOpenView opens a view session and performs the initial load.
func (s *Server) handleOpenView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View  string     `json:"view"`
		Scope core.Scope `json:"scope"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.View == "" {
		respondError(w, r, errBadRequest, http.StatusBadRequest)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	session, err := s.service.OpenView(ctx, req.View, req.Scope)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(ctx).Info("view opened", "view", req.View, "view_id", session.ID)
	writeJSONStatus(w, http.StatusCreated, viewResponse{ID: session.ID, Snapshot: session.Table.Snapshot()})
}

// handleSnapshot returns the current view state.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	respondView(w, sessionFrom(r))
}

// handleCloseView ends a view session.
func (s *Server) handleCloseView(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseView(sessionFrom(r).ID); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadMore appends the next page.
func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	n, err := session.Table.LoadMore(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, struct {
		viewResponse
		Appended int `json:"appended"`
	}{
		viewResponse: viewResponse{ID: session.ID, Snapshot: session.Table.Snapshot()},
		Appended:     n,
	})
}

// handleReload re-fetches the dataset.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if err := session.Table.Reload(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	respondView(w, session)
}

// handleSetFilter sets or clears the category filter.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Value == "" {
		respondError(w, r, errBadRequest, http.StatusBadRequest)
		return
	}

	session := sessionFrom(r)
	session.Table.SetFilter(req.Field, req.Value)
	respondView(w, session)
}

// handleStageEdit stages a field change on one record.
func (s *Server) handleStageEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecordID string `json:"recordId"`
		Field    string `json:"field"`
		Value    any    `json:"value"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.RecordID == "" || req.Field == "" {
		respondError(w, r, errBadRequest, http.StatusBadRequest)
		return
	}

	session := sessionFrom(r)
	if err := session.Table.StageEdit(req.RecordID, req.Field, req.Value); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	respondView(w, session)
}

// handleCommit sends every staged edit.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	result, err := session.Table.CommitEdits(r.Context())
	respondBatch(w, r, session, result, err)
}

// handleSetSelection replaces the selection.
func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, errBadRequest, http.StatusBadRequest)
		return
	}

	session := sessionFrom(r)
	session.Table.ToggleSelection(req.IDs)
	respondView(w, session)
}

// handleRowAction dispatches view, edit or delete on one row.
func (s *Server) handleRowAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action   string `json:"action"`
		RecordID string `json:"recordId"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.RecordID == "" {
		respondError(w, r, errBadRequest, http.StatusBadRequest)
		return
	}

	session := sessionFrom(r)
	if err := session.Table.RequestRowAction(r.Context(), core.RowAction(req.Action), req.RecordID); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	respondView(w, session)
}

// handleCloseModal closes the detail sub-view.
func (s *Server) handleCloseModal(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if err := session.Table.CloseModal(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	respondView(w, session)
}

// handleBulkDelete deletes the given ids, or the selection when the body is
// empty or lists no ids.
func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, errBadRequest, http.StatusBadRequest)
		return
	}

	session := sessionFrom(r)
	result, err := session.Table.RequestBulkDelete(r.Context(), req.IDs)
	respondBatch(w, r, session, result, err)
}

// handleNotices drains the session's notifications.
func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	notices := sessionFrom(r).Notices.Drain()

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := noticeList(notices).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render notices", "error", err)
		}
		return
	}
	writeJSON(w, map[string]any{"notices": notices})
}
