// Package errors provides the structured error type used across rpg-progression.
//
// Every error carries a Code, a user-facing Message, an optional Cause and
// free-form Meta. Codes line up with gRPC status codes so the progression
// service can hand them straight to its transport.
//
// # Basic Usage
//
//	err := errors.NotFoundf("advancement %s not found", id)
//	err := errors.FailedPrecondition("hit die value is required").
//	    WithMeta("advancement_id", id).
//	    WithMeta("level", level)
//
// Wrapping keeps the code of the wrapped error:
//
//	if err := repo.Get(ctx, input); err != nil {
//	    return errors.Wrap(err, "failed to load character")
//	}
//
// # Validation
//
// Component configs validate themselves with the builder:
//
//	vb := errors.NewValidationBuilder()
//	if cfg.Registry == nil {
//	    vb.RequiredField("Registry")
//	}
//	return vb.Build()
//
// # Layer Guidelines
//
// Repositories return NotFound/AlreadyExists with ids in Meta. The advancement
// engine returns FailedPrecondition when required player input is missing and
// InvalidArgument when a payload does not fit an advancement's configuration.
// Handlers convert with ToGRPCError.
package errors
