package session

import (
	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/proto"
)

func recordFromMessage(msg core.Message) proto.Record {
	switch msg.Kind {
	case core.KindChat:
		return proto.Chat(msg.From, msg.Content)
	case core.KindFile:
		return proto.File(msg.From, msg.Filename, msg.Data)
	case core.KindFileDownload:
		return proto.FileDownload(msg.Filename, msg.Data)
	default:
		return proto.Error(core.ErrCodeInternal, "unknown message kind")
	}
}

func recordFromEvent(ev *core.Event) proto.Record {
	switch ev.Kind {
	case core.EventMessage, core.EventFileDownload:
		return recordFromMessage(ev.Message)
	case core.EventError:
		if ev.Error == nil {
			return proto.Error(core.ErrCodeInternal, "unknown error")
		}
		return proto.Error(ev.Error.Code, ev.Error.Message)
	default:
		return proto.Error(core.ErrCodeInternal, "unknown event")
	}
}
