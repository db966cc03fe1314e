package templates

import (
	"fmt"
	"strings"
)

// Validity is the reason code returned by BuildingTemplate.Validate.
type Validity int

const (
	Valid Validity = iota + 1
	NoFloorTemplates
	NoRoofTemplates
	NoValidFloorBlueprints
	NoValidRoofBlueprints
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "ok"
	case NoFloorTemplates:
		return "no-floor-templates"
	case NoRoofTemplates:
		return "no-roof-templates"
	case NoValidFloorBlueprints:
		return "no-valid-floor-blueprints"
	case NoValidRoofBlueprints:
		return "no-valid-roof-blueprints"
	default:
		return fmt.Sprintf("validity(%d)", int(v))
	}
}

// ValidationError refuses a generation request before anything is created.
type ValidationError struct {
	Template string
	Code     Validity
	Missing  []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("building template %s: %s", e.Template, e.Code)
	if len(e.Missing) > 0 {
		msg += " (missing blueprints: " + strings.Join(e.Missing, ", ") + ")"
	}
	return msg
}
