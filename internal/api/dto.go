package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/aldercy/wyrd/internal/assembler"
	"github.com/aldercy/wyrd/internal/graphservice"
	"github.com/aldercy/wyrd/internal/models"
)

// CreateObjectRequest is the request body for creating an object.
type CreateObjectRequest struct {
	Object models.Object `json:"object"`
}

// Validate enforces the structural minimum per kind; everything beyond this
// is the engine's job.
func (r *CreateObjectRequest) Validate() error {
	o := &r.Object
	return validation.ValidateStruct(o,
		validation.Field(&o.Kind, validation.Required,
			validation.In(models.KindNote, models.KindLink, models.KindReifiedLink, models.KindSnapshot)),
		validation.Field(&o.SourceID, validation.When(o.IsLink(), validation.Required)),
		validation.Field(&o.TargetID, validation.When(o.IsLink(), validation.Required)),
		validation.Field(&o.Verb, validation.When(o.IsLink(), validation.Required)),
		validation.Field(&o.LinkKind, validation.When(o.IsLink(),
			validation.Required,
			validation.In(models.LinkHierarchical, models.LinkSemantic))),
		validation.Field(&o.TimeState, validation.When(o.Kind == models.KindSnapshot, validation.Required)),
	)
}

// UpdateObjectRequest is the request body for a partial content update.
type UpdateObjectRequest = graphservice.Patch

// ReparentRequest is the request body for a reparent intent.
type ReparentRequest struct {
	NewParentID string `json:"new_parent_id"`
	OldParentID string `json:"old_parent_id,omitempty"`
	AsReference bool   `json:"as_reference,omitempty"`
}

// Validate checks the required target parent.
func (r *ReparentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NewParentID, validation.Required),
	)
}

// ReifyRequest is the request body for promoting a link.
type ReifyRequest struct {
	Content graphservice.ReifyContent `json:"content"`
}

// CheckLinkRequest asks for an advisory analysis of a proposed link.
type CheckLinkRequest struct {
	SourceID string          `json:"source_id"`
	TargetID string          `json:"target_id"`
	Verb     string          `json:"verb"`
	LinkKind models.LinkKind `json:"link_kind"`
}

// Validate checks the proposed link endpoints.
func (r *CheckLinkRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SourceID, validation.Required),
		validation.Field(&r.TargetID, validation.Required),
		validation.Field(&r.LinkKind, validation.Required,
			validation.In(models.LinkHierarchical, models.LinkSemantic)),
	)
}

// AssembleRequest is the request body for context assembly.
type AssembleRequest struct {
	Mentions []assembler.Mention `json:"mentions"`
	Budget   int                 `json:"budget"`
}

// ComposeRequest extends assembly with a generation call.
type ComposeRequest struct {
	AssembleRequest
	SystemInstruction string `json:"system_instruction,omitempty"`
}

// DeleteResponse reports the removed (or to-be-removed) closure.
type DeleteResponse struct {
	Removed []string `json:"removed"`
	Count   int      `json:"count"`
}

// GraphResponse wraps the current graph for visualization.
type GraphResponse struct {
	Objects []models.Object `json:"objects"`
	Total   int             `json:"total"`
}

// ResolvedResponse wraps a point-in-time materialization.
type ResolvedResponse struct {
	At          time.Time       `json:"at"`
	Objects     []models.Object `json:"objects"`
	Annotations any             `json:"annotations,omitempty"`
}

// ComposeResponse carries generated text plus the assembly audit trail.
type ComposeResponse struct {
	Text     string           `json:"text"`
	Assembly assembler.Result `json:"assembly"`
}
