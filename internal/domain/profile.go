package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownProfileKey is returned when a value is recorded under a key the
// profile does not have.
var ErrUnknownProfileKey = errors.New("unknown profile key")

// ProfileKey names one profile field.
type ProfileKey string

// Profile keys, in the order the assistant asks for them.
const (
	KeyName            ProfileKey = "name"
	KeyCountry         ProfileKey = "country"
	KeyReligion        ProfileKey = "religion"
	KeyCurrentRole     ProfileKey = "currentRole"
	KeyExperienceLevel ProfileKey = "experienceLevel"
	KeySkills          ProfileKey = "skills"
	KeyInterests       ProfileKey = "interests"
	KeyWorkEnvironment ProfileKey = "workEnvironment"
	KeyIndustry        ProfileKey = "industry"
	KeyCareerGoals     ProfileKey = "careerGoals"
)

// Profile is the answer sheet built up during a conversation.
// An empty field means the question has not been answered yet.
type Profile struct {
	Name            string `json:"name,omitempty"`
	Country         string `json:"country,omitempty"`
	Religion        string `json:"religion,omitempty"`
	CurrentRole     string `json:"currentRole,omitempty"`
	ExperienceLevel string `json:"experienceLevel,omitempty"`
	Skills          string `json:"skills,omitempty"`
	Interests       string `json:"interests,omitempty"`
	CareerGoals     string `json:"careerGoals,omitempty"`
	WorkEnvironment string `json:"workEnvironment,omitempty"`
	Industry        string `json:"industry,omitempty"`
}

func (p *Profile) field(key ProfileKey) *string {
	switch key {
	case KeyName:
		return &p.Name
	case KeyCountry:
		return &p.Country
	case KeyReligion:
		return &p.Religion
	case KeyCurrentRole:
		return &p.CurrentRole
	case KeyExperienceLevel:
		return &p.ExperienceLevel
	case KeySkills:
		return &p.Skills
	case KeyInterests:
		return &p.Interests
	case KeyWorkEnvironment:
		return &p.WorkEnvironment
	case KeyIndustry:
		return &p.Industry
	case KeyCareerGoals:
		return &p.CareerGoals
	}
	return nil
}

// Set records value under key.
func (p *Profile) Set(key ProfileKey, value string) error {
	f := p.field(key)
	if f == nil {
		return fmt.Errorf("%w: %q", ErrUnknownProfileKey, key)
	}
	*f = value
	return nil
}

// Get returns the value recorded under key and whether the key is known.
func (p Profile) Get(key ProfileKey) (string, bool) {
	f := p.field(key)
	if f == nil {
		return "", false
	}
	return *f, true
}

// IsZero reports whether no answer has been recorded.
func (p Profile) IsZero() bool {
	return p == Profile{}
}
