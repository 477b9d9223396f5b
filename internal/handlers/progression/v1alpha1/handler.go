// Package v1alpha1 exposes the progression service over gRPC
package v1alpha1

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/services/progression"
)

// HandlerConfig holds dependencies for the progression handler
type HandlerConfig struct {
	Service progression.Service
}

// Validate ensures all required dependencies are present
func (c *HandlerConfig) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}
	if c.Service == nil {
		return errors.InvalidArgument("progression service is required")
	}
	return nil
}

// Handler implements ProgressionServiceServer
type Handler struct {
	UnimplementedProgressionServiceServer
	service progression.Service
}

// NewHandler creates a new progression handler
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handler{service: cfg.Service}, nil
}

var _ ProgressionServiceServer = (*Handler)(nil)

// CreateCharacter stores a new character
func (h *Handler) CreateCharacter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CreateCharacterRequest
	if err := decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	if in.Character == nil {
		return nil, toStatus(errors.InvalidArgument("character is required"))
	}

	out, err := h.service.CreateCharacter(ctx, &progression.CreateCharacterInput{Character: in.Character})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(CharacterResponse{Character: out.Character})
}

// GetCharacter returns a stored character
func (h *Handler) GetCharacter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in GetCharacterRequest
	if err := decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	if in.CharacterID == "" {
		return nil, toStatus(errors.InvalidArgument("characterId is required"))
	}

	out, err := h.service.GetCharacter(ctx, &progression.GetCharacterInput{CharacterID: in.CharacterID})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(CharacterResponse{Character: out.Character})
}

// PlanLevelUp reports the steps of a level up without saving it
func (h *Handler) PlanLevelUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in LevelUpRequest
	if err := decode(req, &in); err != nil {
		return nil, toStatus(err)
	}

	out, err := h.service.PlanLevelUp(ctx, &progression.PlanLevelUpInput{
		CharacterID: in.CharacterID,
		ClassItemID: in.ClassItemID,
		ClassUUID:   in.ClassUUID,
		Payloads:    in.Payloads,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(PlanResponse{
		ClassItemID:    out.ClassItemID,
		ClassLevel:     out.ClassLevel,
		CharacterLevel: out.CharacterLevel,
		Ready:          out.Ready(),
		Steps:          convertSteps(out.Steps),
	})
}

// LevelUp applies one class level
func (h *Handler) LevelUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in LevelUpRequest
	if err := decode(req, &in); err != nil {
		return nil, toStatus(err)
	}

	out, err := h.service.LevelUp(ctx, &progression.LevelUpInput{
		CharacterID: in.CharacterID,
		ClassItemID: in.ClassItemID,
		ClassUUID:   in.ClassUUID,
		Payloads:    in.Payloads,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(TransitionResponse{
		Character:  out.Character,
		ClassLevel: out.ClassLevel,
		Steps:      convertSteps(out.Steps),
	})
}

// LevelDown removes the highest level of a class
func (h *Handler) LevelDown(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in LevelDownRequest
	if err := decode(req, &in); err != nil {
		return nil, toStatus(err)
	}

	out, err := h.service.LevelDown(ctx, &progression.LevelDownInput{
		CharacterID: in.CharacterID,
		ClassItemID: in.ClassItemID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(TransitionResponse{
		Character:  out.Character,
		ClassLevel: out.ClassLevel,
		Steps:      convertSteps(out.Steps),
	})
}

// Refresh re-synchronizes an embedded item with new data
func (h *Handler) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in RefreshRequest
	if err := decode(req, &in); err != nil {
		return nil, toStatus(err)
	}

	out, err := h.service.Refresh(ctx, &progression.RefreshInput{
		CharacterID: in.CharacterID,
		ItemID:      in.ItemID,
		Item:        in.Item,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(RefreshResponse{
		Character:             out.Character,
		Item:                  out.Item,
		InvalidAdvancementIDs: out.InvalidAdvancementIDs,
	})
}

func decode(req *structpb.Struct, target any) error {
	if req == nil {
		return errors.InvalidArgument("request is required")
	}
	data, err := protojson.Marshal(req)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid request")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid request")
	}
	return nil
}

func encode(resp any) (*structpb.Struct, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, toStatus(errors.Wrap(err, "failed to encode response"))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, toStatus(errors.Wrap(err, "failed to encode response"))
	}
	return out, nil
}

// toStatus keeps the advancement coordinates in the status message so a
// client knows which step to prompt for.
func toStatus(err error) error {
	if advErr, ok := advancement.AsAdvancementError(err); ok && advErr.Err != nil {
		return status.Error(advErr.Err.Code.GRPCCode(), advErr.Error())
	}
	return errors.ToGRPCError(err)
}

func convertSteps(steps []progression.Step) []Step {
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		out = append(out, Step(s))
	}
	return out
}

// CreateCharacterRequest is the CreateCharacter request body
type CreateCharacterRequest struct {
	Character *dnd5e.Character `json:"character"`
}

// GetCharacterRequest is the GetCharacter request body
type GetCharacterRequest struct {
	CharacterID string `json:"characterId"`
}

// LevelUpRequest is the LevelUp and PlanLevelUp request body. Payloads are
// keyed "<itemId>.<advancementId>.<level>".
type LevelUpRequest struct {
	CharacterID string                     `json:"characterId"`
	ClassItemID string                     `json:"classItemId,omitempty"`
	ClassUUID   string                     `json:"classUuid,omitempty"`
	Payloads    map[string]json.RawMessage `json:"payloads,omitempty"`
}

// LevelDownRequest is the LevelDown request body
type LevelDownRequest struct {
	CharacterID string `json:"characterId"`
	ClassItemID string `json:"classItemId"`
}

// RefreshRequest is the Refresh request body
type RefreshRequest struct {
	CharacterID string      `json:"characterId"`
	ItemID      string      `json:"itemId"`
	Item        *dnd5e.Item `json:"item,omitempty"`
}

// Step is the wire form of progression.Step
type Step struct {
	Key           string `json:"key"`
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	ItemType      string `json:"itemType"`
	AdvancementID string `json:"advancementId"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	Level         int    `json:"level"`
	Source        string `json:"source,omitempty"`
}

// CharacterResponse carries a single character
type CharacterResponse struct {
	Character *dnd5e.Character `json:"character"`
}

// PlanResponse is the PlanLevelUp response body
type PlanResponse struct {
	ClassItemID    string `json:"classItemId"`
	ClassLevel     int    `json:"classLevel"`
	CharacterLevel int    `json:"characterLevel"`
	Ready          bool   `json:"ready"`
	Steps          []Step `json:"steps"`
}

// TransitionResponse is the LevelUp and LevelDown response body
type TransitionResponse struct {
	Character  *dnd5e.Character `json:"character"`
	ClassLevel int              `json:"classLevel"`
	Steps      []Step           `json:"steps"`
}

// RefreshResponse is the Refresh response body
type RefreshResponse struct {
	Character             *dnd5e.Character `json:"character"`
	Item                  *dnd5e.Item      `json:"item"`
	InvalidAdvancementIDs []string         `json:"invalidAdvancementIds,omitempty"`
}
