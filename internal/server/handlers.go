package server

import (
	"net/http"

	"github.com/roach88/stratum/internal/engine"
	"github.com/roach88/stratum/internal/feature"
)

// openProject resolves the target project or writes the error. Every
// endpoint except createProject starts here.
func (s *Server) openProject(w http.ResponseWriter, r *http.Request, projectID string) (*engine.Engine, bool) {
	if !requireField(w, projectID != "", "project id") {
		return nil, false
	}
	eng, err := s.manager.Open(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return eng, true
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project string `json:"project"`
	}
	if !decode(w, r, &req) || !requireField(w, req.Project != "", "project id") {
		return
	}

	if _, err := s.manager.Create(r.Context(), req.Project); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "created project " + req.Project})
}

func (s *Server) handleCreateType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project string `json:"project"`
		Type    string `json:"type"`
	}
	if !decode(w, r, &req) || !requireField(w, req.Type != "", "unit type") {
		return
	}
	eng, ok := s.openProject(w, r, req.Project)
	if !ok {
		return
	}

	if err := eng.DefineType(r.Context(), req.Type); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "created unit type " + req.Type})
}

func (s *Server) handleCreateFeature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project   string `json:"project"`
		UnitType  string `json:"unittype"`
		Tier      string `json:"tier"`
		Feature   string `json:"feature"`
		ValueType string `json:"valuetype"`
	}
	if !decode(w, r, &req) ||
		!requireField(w, req.UnitType != "", "unit type") ||
		!requireField(w, req.Tier != "", "tier name") ||
		!requireField(w, req.Feature != "", "feature name") ||
		!requireField(w, req.ValueType != "", "value type") {
		return
	}
	eng, ok := s.openProject(w, r, req.Project)
	if !ok {
		return
	}

	if err := eng.DefineFeature(r.Context(), req.UnitType, req.Tier, req.Feature, req.ValueType); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "created feature " + req.Tier + ":" + req.Feature + " for unit type " + req.UnitType,
	})
}

func (s *Server) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project string `json:"project"`
		Type    string `json:"type"`
		User    string `json:"user"`
	}
	if !decode(w, r, &req) || !requireField(w, req.Type != "", "unit type") {
		return
	}
	eng, ok := s.openProject(w, r, req.Project)
	if !ok {
		return
	}

	id, err := eng.CreateUnit(r.Context(), req.Type, req.User)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project  string   `json:"project"`
		Item     *int64   `json:"item"`
		Features []string `json:"features"`
		Reduced  bool     `json:"reduced"`
	}
	if !decode(w, r, &req) || !requireField(w, req.Item != nil, "item id") {
		return
	}
	eng, ok := s.openProject(w, r, req.Project)
	if !ok {
		return
	}

	var filter []feature.Key
	for _, name := range req.Features {
		key, err := feature.ParseKey(name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid feature list"})
			return
		}
		filter = append(filter, key)
	}

	node, err := eng.Materialize(r.Context(), *req.Item, filter, req.Reduced)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project    string                 `json:"project"`
		Item       *int64                 `json:"item"`
		Features   []engine.FeatureTriple `json:"features"`
		User       string                 `json:"user"`
		Confidence *int64                 `json:"confidence"`
	}
	if !decode(w, r, &req) ||
		!requireField(w, req.Item != nil, "item id") ||
		!requireField(w, req.Features != nil, "feature list") ||
		!requireField(w, req.User != "", "username") ||
		!requireField(w, req.Confidence != nil, "confidence score") {
		return
	}
	eng, ok := s.openProject(w, r, req.Project)
	if !ok {
		return
	}

	updates, when, err := eng.SetFeatures(r.Context(), *req.Item, req.Features, req.User, *req.Confidence)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": updates, "time": when})
}

// relationRequest is shared by the three relation endpoints.
type relationRequest struct {
	Project string `json:"project"`
	Parent  *int64 `json:"parent"`
	Child   *int64 `json:"child"`
}

func (s *Server) handleRelation(w http.ResponseWriter, r *http.Request, message string,
	op func(eng *engine.Engine, parent, child int64) (string, error)) {
	var req relationRequest
	if !decode(w, r, &req) ||
		!requireField(w, req.Parent != nil, "parent id") ||
		!requireField(w, req.Child != nil, "child id") {
		return
	}
	eng, ok := s.openProject(w, r, req.Project)
	if !ok {
		return
	}

	when, err := op(eng, *req.Parent, *req.Child)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message, "time": when})
}

func (s *Server) handleSetParent(w http.ResponseWriter, r *http.Request) {
	s.handleRelation(w, r, "parent set", func(eng *engine.Engine, parent, child int64) (string, error) {
		return eng.SetPrimaryRelation(r.Context(), parent, child)
	})
}

func (s *Server) handleAddParent(w http.ResponseWriter, r *http.Request) {
	s.handleRelation(w, r, "parent added", func(eng *engine.Engine, parent, child int64) (string, error) {
		return eng.AddSecondaryRelation(r.Context(), parent, child)
	})
}

func (s *Server) handleRemoveParent(w http.ResponseWriter, r *http.Request) {
	s.handleRelation(w, r, "parent removed", func(eng *engine.Engine, parent, child int64) (string, error) {
		return eng.RemoveRelation(r.Context(), parent, child)
	})
}

func (s *Server) handleListType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project string `json:"project"`
		Type    string `json:"type"`
		Tier    string `json:"tier"`
		Feature string `json:"feature"`
	}
	if !decode(w, r, &req) ||
		!requireField(w, req.Type != "", "unit type") ||
		!requireField(w, req.Tier != "", "tier name") ||
		!requireField(w, req.Feature != "", "feature name") {
		return
	}
	eng, ok := s.openProject(w, r, req.Project)
	if !ok {
		return
	}

	units, err := eng.ListByFeature(r.Context(), req.Type, req.Tier, req.Feature)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type unitEntry struct {
		ID    int64 `json:"id"`
		Value any   `json:"value"`
	}
	entries := make([]unitEntry, len(units))
	for i, u := range units {
		entries[i] = unitEntry{ID: u.ID, Value: engine.RenderValue(u.Value)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": entries})
}

func (s *Server) handleModificationTimes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Project string  `json:"project"`
		IDs     []int64 `json:"ids"`
	}
	if !decode(w, r, &req) || !requireField(w, req.IDs != nil, "id list") {
		return
	}
	eng, ok := s.openProject(w, r, req.Project)
	if !ok {
		return
	}

	times, err := eng.ModificationTimes(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, times)
}
