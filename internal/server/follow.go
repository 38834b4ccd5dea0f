package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/lecternhq/lectern/internal/observe"
	"github.com/lecternhq/lectern/pkg/locate"
)

// followRequest is one client frame on the follow socket: the latest final
// transcript snippet from the reader's speech-to-text stream.
type followRequest struct {
	Snippet string `json:"snippet"`
}

// followResponse answers each frame with the located match (null when nothing
// aligned) and a sequence number so clients can pair answers with requests.
type followResponse struct {
	Match *locate.QueryResult `json:"match"`
	Seq   uint64              `json:"seq"`
}

// handleFollow upgrades to a WebSocket and answers each snippet frame with
// its location in the book. The session ends when the client closes the
// socket or sends a malformed frame.
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("id")
	if _, err := s.lib.Get(bookID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept has already written the HTTP error response.
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session aborted")

	ctx := r.Context()
	log := observe.Logger(ctx).With("book_id", bookID)

	s.metrics.ActiveFollowers.Add(ctx, 1)
	defer s.metrics.ActiveFollowers.Add(ctx, -1)
	log.Info("follow session started")

	var seq uint64
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation.
			log.Info("follow session ended", "frames", seq)
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		var req followRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			conn.Close(websocket.StatusInvalidFramePayloadData, "invalid JSON frame")
			return
		}
		seq++

		start := time.Now()
		res, ok, err := s.lib.Locate(ctx, bookID, req.Snippet)
		if err != nil {
			// Book removed mid-session.
			conn.Close(websocket.StatusGoingAway, "book no longer available")
			return
		}
		s.metrics.RecordLocate(ctx, time.Since(start), ok)

		resp := followResponse{Seq: seq}
		if ok {
			resp.Match = &res
		}
		out, err := json.Marshal(resp)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "encode failure")
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			return
		}
	}
}
