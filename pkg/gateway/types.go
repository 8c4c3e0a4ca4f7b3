package gateway

import (
	"monarch/pkg/api"
)

// Aliases into the api package so channel implementations and the manager
// share one set of gateway types.
type Channel = api.Channel
type SignalingChannel = api.SignalingChannel
type MessageResponder = api.MessageResponder
type ChannelContext = api.ChannelContext
type UnifiedMessage = api.UnifiedMessage
type SessionContext = api.SessionContext
type MessageHandler = api.MessageHandler
