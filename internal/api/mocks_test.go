package api

import (
	"context"

	"github.com/jukkahell/spotify-queue-sub000/internal/queue"
)

// mockService implements QueueService with overridable funcs.
type mockService struct {
	GetCurrentStateFunc func(ctx context.Context, passcode, userID string) (*queue.CurrentState, error)
	JoinFunc            func(ctx context.Context, passcode, userID string) (string, bool, error)
	AddToQueueFunc      func(ctx context.Context, passcode, userID, trackURI, source string) (*queue.QueueItem, error)
	RemoveFromQueueFunc func(ctx context.Context, passcode, userID, trackID string, isCurrent bool) error
	SkipFunc            func(ctx context.Context, passcode, userID, trackID string) error
	MoveUpFunc          func(ctx context.Context, passcode, userID, trackID string) error
	MoveFirstFunc       func(ctx context.Context, passcode, userID, trackID string) error
	ProtectTrackFunc    func(ctx context.Context, passcode, userID, trackID string, isCurrent bool) error
	VoteFunc            func(ctx context.Context, passcode, userID string, value int) (int, error)
	PauseResumeFunc     func(ctx context.Context, passcode, userID string) (bool, error)
	QueuePlaylistFunc   func(ctx context.Context, passcode, userID, playlistID string) (int, error)
	BuyPerkFunc         func(ctx context.Context, passcode, userID, perkName string) (*queue.Perk, error)
	SetDeviceFunc       func(ctx context.Context, passcode, userID, deviceID string) error
	UpdateSettingsFunc  func(ctx context.Context, passcode, userID string, settings queue.Settings) error
	RemoveUserFunc      func(ctx context.Context, passcode, userID, targetID string) error
	ResetPointsFunc     func(ctx context.Context, passcode, userID string) error
	LogoutFunc          func(ctx context.Context, passcode, userID string) error
}

func (m *mockService) GetCurrentState(ctx context.Context, passcode, userID string) (*queue.CurrentState, error) {
	if m.GetCurrentStateFunc != nil {
		return m.GetCurrentStateFunc(ctx, passcode, userID)
	}
	return &queue.CurrentState{}, nil
}

func (m *mockService) Join(ctx context.Context, passcode, userID string) (string, bool, error) {
	if m.JoinFunc != nil {
		return m.JoinFunc(ctx, passcode, userID)
	}
	return "user-1", false, nil
}

func (m *mockService) AddToQueue(ctx context.Context, passcode, userID, trackURI, source string) (*queue.QueueItem, error) {
	if m.AddToQueueFunc != nil {
		return m.AddToQueueFunc(ctx, passcode, userID, trackURI, source)
	}
	return &queue.QueueItem{}, nil
}

func (m *mockService) RemoveFromQueue(ctx context.Context, passcode, userID, trackID string, isCurrent bool) error {
	if m.RemoveFromQueueFunc != nil {
		return m.RemoveFromQueueFunc(ctx, passcode, userID, trackID, isCurrent)
	}
	return nil
}

func (m *mockService) Skip(ctx context.Context, passcode, userID, trackID string) error {
	if m.SkipFunc != nil {
		return m.SkipFunc(ctx, passcode, userID, trackID)
	}
	return nil
}

func (m *mockService) MoveUp(ctx context.Context, passcode, userID, trackID string) error {
	if m.MoveUpFunc != nil {
		return m.MoveUpFunc(ctx, passcode, userID, trackID)
	}
	return nil
}

func (m *mockService) MoveFirst(ctx context.Context, passcode, userID, trackID string) error {
	if m.MoveFirstFunc != nil {
		return m.MoveFirstFunc(ctx, passcode, userID, trackID)
	}
	return nil
}

func (m *mockService) ProtectTrack(ctx context.Context, passcode, userID, trackID string, isCurrent bool) error {
	if m.ProtectTrackFunc != nil {
		return m.ProtectTrackFunc(ctx, passcode, userID, trackID, isCurrent)
	}
	return nil
}

func (m *mockService) Vote(ctx context.Context, passcode, userID string, value int) (int, error) {
	if m.VoteFunc != nil {
		return m.VoteFunc(ctx, passcode, userID, value)
	}
	return 0, nil
}

func (m *mockService) PauseResume(ctx context.Context, passcode, userID string) (bool, error) {
	if m.PauseResumeFunc != nil {
		return m.PauseResumeFunc(ctx, passcode, userID)
	}
	return true, nil
}

func (m *mockService) QueuePlaylist(ctx context.Context, passcode, userID, playlistID string) (int, error) {
	if m.QueuePlaylistFunc != nil {
		return m.QueuePlaylistFunc(ctx, passcode, userID, playlistID)
	}
	return 0, nil
}

func (m *mockService) BuyPerk(ctx context.Context, passcode, userID, perkName string) (*queue.Perk, error) {
	if m.BuyPerkFunc != nil {
		return m.BuyPerkFunc(ctx, passcode, userID, perkName)
	}
	return &queue.Perk{}, nil
}

func (m *mockService) SetDevice(ctx context.Context, passcode, userID, deviceID string) error {
	if m.SetDeviceFunc != nil {
		return m.SetDeviceFunc(ctx, passcode, userID, deviceID)
	}
	return nil
}

func (m *mockService) UpdateSettings(ctx context.Context, passcode, userID string, settings queue.Settings) error {
	if m.UpdateSettingsFunc != nil {
		return m.UpdateSettingsFunc(ctx, passcode, userID, settings)
	}
	return nil
}

func (m *mockService) RemoveUser(ctx context.Context, passcode, userID, targetID string) error {
	if m.RemoveUserFunc != nil {
		return m.RemoveUserFunc(ctx, passcode, userID, targetID)
	}
	return nil
}

func (m *mockService) ResetPoints(ctx context.Context, passcode, userID string) error {
	if m.ResetPointsFunc != nil {
		return m.ResetPointsFunc(ctx, passcode, userID)
	}
	return nil
}

func (m *mockService) Logout(ctx context.Context, passcode, userID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, passcode, userID)
	}
	return nil
}
