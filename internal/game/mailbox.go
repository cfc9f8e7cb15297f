package game

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// mailbox holds at most one undelivered message per (recipient, message type).
// A newer message of the same type replaces the buffered one.
type mailbox struct {
	pending map[string]map[string]internal.Message[any]
}

func newMailbox() *mailbox {
	return &mailbox{pending: make(map[string]map[string]internal.Message[any])}
}

// deliver sends msg over conn when possible and buffers it otherwise.
// It reports whether the message went out live.
func (m *mailbox) deliver(recipient string, conn internal.Conn, msg internal.Message[any]) bool {
	if conn != nil {
		err := conn.Send(msg)
		if err == nil {
			m.remove(recipient, msg.Type)
			return true
		}
		log.Debug().Err(err).Str("player", recipient).Str("type", msg.Type).Msg("[mailbox] live send failed, buffering")
	}

	slots, ok := m.pending[recipient]
	if !ok {
		slots = make(map[string]internal.Message[any])
		m.pending[recipient] = slots
	}
	slots[msg.Type] = msg
	return false
}

// flush retries every buffered message once on a fresh connection.
// Messages that still fail stay buffered.
func (m *mailbox) flush(recipient string, conn internal.Conn) int {
	slots := m.pending[recipient]
	if len(slots) == 0 || conn == nil {
		return 0
	}

	types := make([]string, 0, len(slots))
	for t := range slots {
		types = append(types, t)
	}
	// state first so later pushes land on an up to date view
	sort.Slice(types, func(i, j int) bool {
		if types[i] == internal.MsgGameState || types[j] == internal.MsgGameState {
			return types[i] == internal.MsgGameState
		}
		return types[i] < types[j]
	})

	sent := 0
	for _, t := range types {
		if err := conn.Send(slots[t]); err != nil {
			log.Debug().Err(err).Str("player", recipient).Str("type", t).Msg("[mailbox] flush send failed")
			continue
		}
		delete(slots, t)
		sent++
	}
	if len(slots) == 0 {
		delete(m.pending, recipient)
	}
	return sent
}

func (m *mailbox) remove(recipient, msgType string) {
	if slots, ok := m.pending[recipient]; ok {
		delete(slots, msgType)
		if len(slots) == 0 {
			delete(m.pending, recipient)
		}
	}
}

func (m *mailbox) drop(recipient string) {
	delete(m.pending, recipient)
}

func (m *mailbox) peek(recipient, msgType string) (internal.Message[any], bool) {
	msg, ok := m.pending[recipient][msgType]
	return msg, ok
}

func (m *mailbox) size(recipient string) int {
	return len(m.pending[recipient])
}
