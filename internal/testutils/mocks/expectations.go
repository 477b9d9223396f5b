// Package mocks provides mock expectation helpers for common testing patterns
package mocks

import (
	"context"

	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	characterrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/character"
	charactermock "github.com/KirkDiggler/rpg-progression/internal/repositories/character/mock"
	snapshotmock "github.com/KirkDiggler/rpg-progression/internal/repositories/snapshot/mock"
)

// ExpectCharacterGet sets up a mock expectation for loading a character
func ExpectCharacterGet(mockRepo *charactermock.MockRepository, character *dnd5e.Character) *gomock.Call {
	return mockRepo.EXPECT().
		Get(gomock.Any(), characterrepo.GetInput{ID: character.ID}).
		Return(&characterrepo.GetOutput{Character: character}, nil)
}

// ExpectCharacterUpdate sets up a mock expectation for an update guarded by
// the given UpdatedAt. The stored character is returned with its
// UpdatedAt advanced.
func ExpectCharacterUpdate(mockRepo *charactermock.MockRepository, expectedUpdatedAt int64) *gomock.Call {
	return mockRepo.EXPECT().
		Update(gomock.Any(), gomock.Cond(func(x any) bool {
			input, ok := x.(characterrepo.UpdateInput)
			return ok && input.ExpectedUpdatedAt == expectedUpdatedAt
		})).
		DoAndReturn(func(_ context.Context, input characterrepo.UpdateInput) (*characterrepo.UpdateOutput, error) {
			stored := *input.Character
			stored.UpdatedAt = expectedUpdatedAt + 1
			return &characterrepo.UpdateOutput{Character: &stored}, nil
		})
}

// ExpectNoSnapshots sets up count snapshot lookups that find nothing
func ExpectNoSnapshots(mockRepo *snapshotmock.MockRepository, count int) *gomock.Call {
	return mockRepo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(nil, errors.NotFound("snapshot not found")).
		Times(count)
}
