package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"clawoffice.ai/internal/protocol"
	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/routes"
)

type delegationReq struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (s *Server) handleDelegation(rw http.ResponseWriter, r *http.Request) {
	var req delegationReq
	if !decode(rw, r, &req) {
		return
	}
	typ, err := dispatch.ParseType(req.Type)
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	out, err := s.office.Delegate(ctx, req.From, req.To, typ, req.Content)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusAccepted, out)
}

func (s *Server) handleInteraction(rw http.ResponseWriter, r *http.Request) {
	var ev dispatch.Interaction
	if !decode(rw, r, &ev) {
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	out, err := s.office.Interact(ctx, ev)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusAccepted, out)
}

// handleHeartbeats takes {agent: unixMillis}.
func (s *Server) handleHeartbeats(rw http.ResponseWriter, r *http.Request) {
	var in map[string]int64
	if !decode(rw, r, &in) {
		return
	}
	beats := make(map[string]time.Time, len(in))
	for name, ms := range in {
		if ms > 0 {
			beats[name] = time.UnixMilli(ms).UTC()
		}
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	if err := s.office.Heartbeat(ctx, beats); err != nil {
		s.fail(rw, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueue(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	st, err := s.office.QueueStatus(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

func (s *Server) handleClearQueue(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	n, err := s.office.ClearQueue(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]int{"dropped": n})
}

func (s *Server) handleRoutes(rw http.ResponseWriter, r *http.Request) {
	cat := s.office.Catalog()
	rw.Header().Set("X-Catalog-Digest", cat.Digest())
	writeJSON(rw, http.StatusOK, cat.Routes())
}

func (s *Server) handleRoute(rw http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rt, ok := s.office.Catalog().Get(id)
	if !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "no route "+id)
		return
	}
	writeJSON(rw, http.StatusOK, rt)
}

type catalogChange struct {
	Digest string `json:"digest"`
	Routes int    `json:"routes"`
	Stored bool   `json:"stored"`
}

func (s *Server) handleReplaceRoute(rw http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var rt routes.Route
	if !decode(rw, r, &rt) {
		return
	}
	if rt.ID == "" {
		rt.ID = id
	}
	if rt.ID != id {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "route id does not match path")
		return
	}
	if err := s.office.ReplaceRoute(rt); err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, s.saveCatalog(r))
}

func (s *Server) handleRegenerate(rw http.ResponseWriter, r *http.Request) {
	_, errs := s.office.Regenerate()
	for _, err := range errs {
		s.log.Printf("regenerate: %v", err)
	}
	writeJSON(rw, http.StatusOK, s.saveCatalog(r))
}

func (s *Server) saveCatalog(r *http.Request) catalogChange {
	cat := s.office.Catalog()
	out := catalogChange{Digest: cat.Digest(), Routes: cat.Len()}
	if s.store == nil {
		return out
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	if err := s.store.Save(ctx, cat.Routes()); err != nil {
		s.log.Printf("catalog save: %v", err)
		return out
	}
	out.Stored = true
	return out
}

func (s *Server) handlePresence(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	v, err := s.office.Presence(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, v)
}

func (s *Server) handleLeave(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	if err := s.office.Leave(ctx, mux.Vars(r)["agent"]); err != nil {
		s.fail(rw, err)
		return
	}
	rw.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReturn(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	if err := s.office.Return(ctx, mux.Vars(r)["agent"]); err != nil {
		s.fail(rw, err)
		return
	}
	rw.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleConvene(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	reqs, err := s.office.Convene(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusAccepted, reqs)
}

func (s *Server) handleDismiss(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	reqs, err := s.office.Dismiss(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusAccepted, reqs)
}

func (s *Server) handlePoses(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.ctx(r)
	defer cancel()
	poses, err := s.office.Poses(ctx)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, poses)
}

func (s *Server) handleMovements(rw http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "movement index disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	ms, err := s.history.RecentMovements(ctx, r.URL.Query().Get("agent"), limit)
	if err != nil {
		s.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, ms)
}
