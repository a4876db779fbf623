package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/AGENTMESH/internal/tasks"
	"github.com/AGENTMESH/internal/teams"
)

// teamSummary is the REST view of one team
type teamSummary struct {
	ID           string `json:"id"`
	ParentTeamID string `json:"parent_team_id,omitempty"`
	Depth        int    `json:"depth"`
	ProjectPath  string `json:"project_path,omitempty"`
	Agents       int    `json:"agents"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"teams":  len(s.deps.Manager.TeamIDs()),
	})
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	var out []teamSummary
	for _, id := range s.deps.Manager.TeamIDs() {
		out = append(out, s.summarize(id))
	}
	if out == nil {
		out = []teamSummary{}
	}
	s.respondJSON(w, out)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.deps.Manager.Exists(id) {
		s.respondError(w, http.StatusNotFound, "team not found")
		return
	}
	s.respondJSON(w, s.summarize(id))
}

func (s *Server) summarize(teamID string) teamSummary {
	meta, _ := s.deps.Tables.Get(teamID).GetMeta()
	return teamSummary{
		ID:           teamID,
		ParentTeamID: meta.ParentTeamID,
		Depth:        meta.Depth,
		ProjectPath:  meta.ProjectPath,
		Agents:       len(s.deps.Manager.ListAgents(teamID)),
	}
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		ProjectPath string `json:"project_path"`
		Template    string `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if req.Template != "" {
		team, err := s.deps.Manager.SpawnFromTemplate(req.Template, req.Name, req.ProjectPath)
		if err != nil {
			if errors.Is(err, teams.ErrTemplateNotFound) {
				s.respondError(w, http.StatusNotFound, err.Error())
				return
			}
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, team)
		return
	}

	team, err := s.deps.Manager.CreateTeam(req.Name, req.ProjectPath)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, team)
}

func (s *Server) handleDissolveTeam(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.deps.Manager.DissolveTeam(id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, map[string]bool{"dissolved": true})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.deps.Manager.Exists(id) {
		s.respondError(w, http.StatusNotFound, "team not found")
		return
	}
	s.respondJSON(w, s.deps.Manager.ListAgents(id))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	coordinator, err := s.deps.Manager.Coordinator(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, http.StatusNotFound, "team not found")
		return
	}
	list, err := coordinator.ListTasks()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, list)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	coordinator, err := s.deps.Manager.Coordinator(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, http.StatusNotFound, "team not found")
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    int    `json:"priority"`
		Role        string `json:"role"`
		ModelHint   string `json:"model_hint"`
		TaskType    string `json:"task_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	task, err := coordinator.CreateTask(req.Title, tasks.CreateOptions{
		Description: req.Description,
		Priority:    req.Priority,
		Role:        req.Role,
		ModelHint:   req.ModelHint,
		TaskType:    req.TaskType,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, task)
}

func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.deps.Manager.Exists(id) {
		s.respondError(w, http.StatusNotFound, "team not found")
		return
	}
	s.respondJSON(w, map[string]any{
		"budget": s.deps.Limiter.TeamUsage(id),
		"agents": s.deps.Tracker.GetTeamUsage(id),
	})
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	table := s.deps.Tables.Get(id)
	if table == nil {
		s.respondError(w, http.StatusNotFound, "team not found")
		return
	}
	claims := table.ListAllClaims()
	if claims == nil {
		s.respondJSON(w, []any{})
		return
	}
	s.respondJSON(w, claims)
}

func (s *Server) respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
