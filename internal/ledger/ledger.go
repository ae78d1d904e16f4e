// Package ledger holds the fixed list of career profile questions.
package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/careerpath/internal/domain"
)

// ErrOutOfRange is returned by Get for an index outside the ledger.
var ErrOutOfRange = errors.New("question index out of range")

// Question is one profile question.
type Question struct {
	Key      domain.ProfileKey
	Question string
	Options  []string
}

// Render returns the question text with its options as a numbered list.
func (q Question) Render() string {
	if len(q.Options) == 0 {
		return q.Question
	}
	var b strings.Builder
	b.WriteString(q.Question)
	b.WriteString("\n\nOptions:")
	for i, opt := range q.Options {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(opt)
	}
	return b.String()
}

var questions = []Question{
	{
		Key:      domain.KeyCurrentRole,
		Question: "What's your current role or position? (e.g., Student, Software Developer, Marketing Manager)",
	},
	{
		Key:      domain.KeyExperienceLevel,
		Question: "What's your experience level?",
		Options: []string{
			"Entry Level (0-2 years)",
			"Junior (2-4 years)",
			"Mid-Level (4-7 years)",
			"Senior (7-10 years)",
			"Lead/Principal (10+ years)",
			"Executive/C-Level",
		},
	},
	{
		Key:      domain.KeySkills,
		Question: "What are your current skills and expertise? Please list your technical skills, soft skills, and any certifications.",
	},
	{
		Key:      domain.KeyInterests,
		Question: "What are your interests and passions? What topics or activities genuinely interest you?",
	},
	{
		Key:      domain.KeyWorkEnvironment,
		Question: "What's your preferred work environment?",
		Options: []string{
			"Large Corporation",
			"Startup",
			"Remote Work",
			"Hybrid",
			"Freelance/Consulting",
			"Non-Profit",
			"Government",
		},
	},
	{
		Key:      domain.KeyIndustry,
		Question: "Which industry interests you the most? (e.g., Technology, Healthcare, Finance, Education)",
	},
	{
		Key:      domain.KeyCareerGoals,
		Question: "What are your career goals and aspirations? Where do you see yourself in 3-5 years?",
	},
}

// Len returns the number of questions.
func Len() int {
	return len(questions)
}

// Get returns the question at index i.
func Get(i int) (Question, error) {
	if i < 0 || i >= len(questions) {
		return Question{}, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	q := questions[i]
	q.Options = append([]string(nil), q.Options...)
	return q, nil
}
