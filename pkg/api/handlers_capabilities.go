package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// capabilitiesHandler implements GET /v1/capabilities: the registry's
// currently discovered agents and skills, unauthenticated — it describes
// what the gateway can do, not project-specific state.
func (s *Server) capabilitiesHandler(c *echo.Context) error {
	list := s.registry.List()

	agents := make([]CapabilityAgent, len(list.Agents))
	for i, a := range list.Agents {
		agents[i] = CapabilityAgent{Name: a.Name, Description: a.Description, Tools: a.Tools, Model: a.Model}
	}
	skills := make([]CapabilitySkill, len(list.Skills))
	for i, sk := range list.Skills {
		skills[i] = CapabilitySkill{Name: sk.Name, Description: sk.Description, Command: sk.Command}
	}

	return c.JSON(http.StatusOK, CapabilitiesResponse{
		Agents:      agents,
		Skills:      skills,
		AgentsCount: len(agents),
		SkillsCount: len(skills),
		MCPTools:    list.MCPTools,
	})
}
