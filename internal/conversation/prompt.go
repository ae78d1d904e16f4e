package conversation

import (
	"fmt"

	"github.com/ashureev/careerpath/internal/domain"
)

const promptTemplate = `You are a professional career counselor. Based on this profile, provide a comprehensive career path analysis. Format your response using HTML tags for proper formatting.

Person's Profile:
- Name: %s
- Country: %s
- Religion/Culture: %s
- Current Role: %s
- Experience Level: %s
- Skills: %s
- Interests: %s
- Career Goals: %s
- Work Environment: %s
- Industry: %s

Provide a detailed response with:
1. <strong>Career Path Analysis</strong>
2. <strong>Recommended Next Steps</strong>
3. <strong>Skill Development Plan</strong>
4. <strong>Industry Insights</strong>
5. <strong>Alternative Career Options</strong>
6. <strong>Timeline & Milestones</strong>

Use HTML formatting: <strong>, <ul>, <li>, <p>, <em>. No markdown.`

// BuildPrompt renders the generation prompt for a completed profile.
func BuildPrompt(p domain.Profile) string {
	return fmt.Sprintf(promptTemplate,
		p.Name,
		p.Country,
		p.Religion,
		p.CurrentRole,
		p.ExperienceLevel,
		p.Skills,
		p.Interests,
		p.CareerGoals,
		p.WorkEnvironment,
		p.Industry,
	)
}
