package draw

import (
	"fmt"
	"strings"
)

// Settings is the per-event draw configuration.
type Settings struct {
	TeamSize      int  `json:"team_size" mapstructure:"team_size"`
	UpperSizeFix  bool `json:"upper_size_fix" mapstructure:"upper_size_fix"`
	MaxGroupSize  int  `json:"max_group_size" mapstructure:"max_group_size"`
	MaxCommonTeam int  `json:"max_common_team" mapstructure:"max_common_team"`
}

// ValidationError is a single invalid settings field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid field found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate returns nil or a ValidationErrors listing every bad field.
func (s Settings) Validate() error {
	var errs ValidationErrors
	if s.TeamSize < 1 {
		errs = append(errs, ValidationError{Field: "team_size", Value: s.TeamSize, Message: "must be positive"})
	}
	if s.MaxGroupSize < 1 {
		errs = append(errs, ValidationError{Field: "max_group_size", Value: s.MaxGroupSize, Message: "must be positive"})
	}
	if s.MaxCommonTeam < 0 {
		errs = append(errs, ValidationError{Field: "max_common_team", Value: s.MaxCommonTeam, Message: "must not be negative"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Rules returns the placement rules implied by the settings.
func (s Settings) Rules() Rules {
	return Rules{MaxGroupSize: s.MaxGroupSize, MaxCommonTeam: s.MaxCommonTeam}
}

// Bounds is the team count and the allowed size window for every team.
type Bounds struct {
	TeamCount int `json:"team_count"`
	MinSize   int `json:"min_team_size"`
	MaxSize   int `json:"max_team_size"`
}

// BoundsFor derives the bounds for a roster of playerCount players.
//
// With UpperSizeFix the team count rounds down and teams may grow by one over
// TeamSize; otherwise it rounds up and teams may shrink by one.
func BoundsFor(playerCount int, s Settings) Bounds {
	if s.UpperSizeFix {
		return Bounds{
			TeamCount: playerCount / s.TeamSize,
			MinSize:   s.TeamSize,
			MaxSize:   s.TeamSize + 1,
		}
	}
	return Bounds{
		TeamCount: (playerCount + s.TeamSize - 1) / s.TeamSize,
		MinSize:   s.TeamSize - 1,
		MaxSize:   s.TeamSize,
	}
}

func (b Bounds) fits(size int) bool {
	return size >= b.MinSize && size <= b.MaxSize
}
