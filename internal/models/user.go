package models

import (
	"fmt"
	"math"
	"strings"
)

// Sex is the profile's sex used for BMR estimation
type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
	SexOther  Sex = "Other"
)

// ParseSex maps free input onto a Sex, case-insensitively.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return SexMale, nil
	case "female":
		return SexFemale, nil
	case "other", "":
		return SexOther, nil
	default:
		return "", fmt.Errorf("unknown sex %q", s)
	}
}

// Profile is the single nutrition profile owned by a user
type Profile struct {
	Name     string  `json:"name"`
	Age      int     `json:"age"`
	Sex      Sex     `json:"sex"`
	HeightCm float64 `json:"height_cm"`
	WeightKg float64 `json:"weight_kg"`
	Notes    string  `json:"notes"` // free text, may carry genotype markers
}

// Validate normalizes Sex and rejects impossible body metrics.
func (p *Profile) Validate() error {
	sex, err := ParseSex(string(p.Sex))
	if err != nil {
		return err
	}
	p.Sex = sex
	if p.Age < 0 {
		return fmt.Errorf("age must not be negative")
	}
	if p.HeightCm < 0 || math.IsNaN(p.HeightCm) || math.IsInf(p.HeightCm, 0) {
		return fmt.Errorf("height must be a non-negative number")
	}
	if p.WeightKg < 0 || math.IsNaN(p.WeightKg) || math.IsInf(p.WeightKg, 0) {
		return fmt.Errorf("weight must be a non-negative number")
	}
	return nil
}
