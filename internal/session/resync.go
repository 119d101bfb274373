package session

import (
	"context"

	"github.com/linguaroom/linguaroom/internal/api"
	"github.com/linguaroom/linguaroom/internal/domain"
)

// RESTResync pulls the reconnect snapshot from the REST layer: the
// current roster from the room document and the recent message tail.
type RESTResync struct {
	Client       *api.Client
	HistoryLimit int
}

func (r RESTResync) Snapshot(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, []domain.ChatMessage, error) {
	detail, err := r.Client.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	limit := r.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	msgs, err := r.Client.ListMessages(ctx, roomID, limit)
	if err != nil {
		return nil, nil, err
	}
	return detail.Participants, msgs, nil
}
