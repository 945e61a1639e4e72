package cursorstore

import (
	"errors"
	"fmt"

	"github.com/tiplinehq/tipline/pkg/common/constant"
	"github.com/tiplinehq/tipline/pkg/infra"
	"github.com/tiplinehq/tipline/pkg/kvstore"
)

const (
	PollStates = "poll_states"
)

func cursorKey(pollerName string) string {
	return fmt.Sprintf("%s/%s%s", PollStates, constant.CursorKeyPrefix, pollerName)
}

// Store persists each poller's since-id watermark so a restart resumes from
// where the previous process stopped instead of rescanning the window. A
// lost cursor is safe: the ledger's uniqueness constraint still prevents
// duplicate effects, a rescan only costs read calls.
type Store interface {
	GetCursor(pollerName string) (string, error)
	SaveCursor(pollerName string, sinceID string) error
	Close() error
}

type cursorStore struct {
	store infra.KVStore
}

func New(store infra.KVStore) Store {
	return &cursorStore{store: store}
}

// GetCursor returns the saved watermark, or "" when none was saved yet.
func (cs *cursorStore) GetCursor(pollerName string) (string, error) {
	if pollerName == "" {
		return "", errors.New("poller name is required")
	}
	v, err := cs.store.Get(cursorKey(pollerName))
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (cs *cursorStore) SaveCursor(pollerName string, sinceID string) error {
	if pollerName == "" {
		return errors.New("poller name is required")
	}
	if sinceID == "" {
		return errors.New("since id is required")
	}
	return cs.store.Set(cursorKey(pollerName), sinceID)
}

func (cs *cursorStore) Close() error {
	return cs.store.Close()
}
