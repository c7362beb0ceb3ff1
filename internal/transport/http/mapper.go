package http

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

// identifyFunc resolves the identity claimed by user_online.
type identifyFunc func(data proto.UserOnlineData) (string, *proto.Error)

var errMalformed = &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "malformed payload"}

func inboundToCommand(inbound proto.Inbound, identify identifyFunc) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeUserOnline:
		var data proto.UserOnlineData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, errMalformed
		}
		userID, protoErr := identify(data)
		if protoErr != nil {
			return nil, protoErr
		}
		return &core.Command{Kind: core.CommandIdentify, UserID: userID}, nil
	case proto.InboundTypeJoinRoom, proto.InboundTypeLeaveRoom:
		var data proto.RoomData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, errMalformed
		}
		kind := core.CommandJoinRoom
		if inbound.Type == proto.InboundTypeLeaveRoom {
			kind = core.CommandLeaveRoom
		}
		return &core.Command{Kind: kind, Room: data.RoomKey}, nil
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, errMalformed
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			UserID:  data.SenderID,
			Room:    data.RoomKey,
			Content: data.Content,
		}, nil
	case proto.InboundTypeTyping, proto.InboundTypeStopTyping:
		var data proto.TypingData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, errMalformed
		}
		kind := core.CommandTyping
		if inbound.Type == proto.InboundTypeStopTyping {
			kind = core.CommandStopTyping
		}
		return &core.Command{Kind: kind, Room: data.RoomKey, Username: data.Username}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventJoinedRoom:
		return eventOutbound(proto.EventJoinedRoom, proto.RoomData{RoomKey: event.Room})
	case core.EventLeftRoom:
		return eventOutbound(proto.EventLeftRoom, proto.RoomData{RoomKey: event.Room})
	case core.EventMessageDelivered:
		return eventOutbound(proto.EventReceiveMessage, messagePayload(event.Message))
	case core.EventMessageFailed:
		return eventOutbound(proto.EventMessageFailed, proto.MessageFailedData{
			RoomKey: event.Failed.Room,
			Content: event.Failed.Content,
			Code:    event.Failed.Code,
		})
	case core.EventPresenceChanged:
		return eventOutbound(proto.EventUserStatus, proto.UserStatusData{
			UserID:   event.Presence.UserID,
			IsOnline: event.Presence.Online,
		})
	case core.EventTyping, core.EventStopTyping:
		name := proto.EventUserTyping
		if event.Kind == core.EventStopTyping {
			name = proto.EventUserStopTyping
		}
		return eventOutbound(name, proto.TypingData{
			RoomKey:  event.Typing.Room,
			UserID:   event.Typing.UserID,
			Username: event.Typing.Username,
		})
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func messagePayload(m *core.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:        m.ID,
		RoomKey:   m.Room,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Timestamp: m.CreatedAt.Format(time.RFC3339Nano),
		Sender: proto.Sender{
			ID:       m.SenderID,
			Username: m.SenderUsername,
			Avatar:   m.SenderAvatar,
		},
	}
}
