package usecase

import (
	"sort"
	"time"

	"medichat/internal/entity"
)

// MergeById folds a batch of messages into dst keyed by message id, last
// write wins. A nil dst is allocated. Applying the same batches in any
// order produces the same map.
func MergeById(dst map[string]entity.Message, batch []entity.Message) map[string]entity.Message {
	if dst == nil {
		dst = make(map[string]entity.Message, len(batch))
	}
	for _, message := range batch {
		dst[message.Id] = message
	}
	return dst
}

// Chronological returns the merged set sorted ascending by timestamp,
// with the message id as tiebreak so equal timestamps still order
// deterministically.
func Chronological(byId map[string]entity.Message) []entity.Message {
	out := make([]entity.Message, 0, len(byId))
	for _, message := range byId {
		out = append(out, message)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Id < out[j].Id
	})
	return out
}

// Feed is the in-memory window of one message subscription: an initial
// page plus live updates, merged by id. A feed opened with a cursor covers
// one older page and only updates messages already inside it; the head
// feed (zero cursor) additionally absorbs newly arriving messages.
type Feed struct {
	byId   map[string]entity.Message
	cursor entity.MessageCursor
	floor  time.Time
	capped bool
}

func NewFeed(cursor entity.MessageCursor) *Feed {
	return &Feed{
		byId:   make(map[string]entity.Message),
		cursor: cursor,
	}
}

// LoadPage folds the pageSize+1 overfetch (newest first) into the feed and
// reports whether older messages remain. The extra record is dropped; the
// cursor for the next page is the (timestamp, id) of the oldest record
// kept.
func (f *Feed) LoadPage(fetched []entity.Message, pageSize int) entity.PageInfo {
	page := fetched
	info := entity.PageInfo{}
	if pageSize > 0 && len(fetched) > pageSize {
		page = fetched[:pageSize]
		info.HasMore = true
		info.NextCursor = entity.MessageCursor{
			Timestamp: page[len(page)-1].Timestamp,
			Id:        page[len(page)-1].Id,
		}
	}
	if len(page) > 0 {
		oldest := page[len(page)-1].Timestamp
		if f.floor.IsZero() || oldest.Before(f.floor) {
			f.floor = oldest
		}
	}
	f.capped = info.HasMore
	f.byId = MergeById(f.byId, page)
	return info
}

// Apply folds one live event into the feed and reports whether the window
// changed. Updates to loaded messages always land; inserts land only on
// the head feed, and only when they are not older than the loaded window.
func (f *Feed) Apply(message entity.Message) bool {
	if _, loaded := f.byId[message.Id]; loaded {
		f.byId[message.Id] = message
		return true
	}
	if !f.cursor.IsZero() {
		return false
	}
	if f.capped && message.Timestamp.Before(f.floor) {
		return false
	}
	f.byId[message.Id] = message
	return true
}

// Messages returns the feed window in display order.
func (f *Feed) Messages() []entity.Message {
	return Chronological(f.byId)
}
