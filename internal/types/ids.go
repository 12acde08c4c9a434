// internal/types/ids.go
package types

import (
	"strconv"

	"github.com/google/uuid"
)

type ActorID string
type ChannelID string
type RequestID string
type ArtifactID string

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

func ActorFromInt64(id int64) ActorID {
	return ActorID(strconv.FormatInt(id, 10))
}

func ChannelFromInt64(id int64) ChannelID {
	return ChannelID(strconv.FormatInt(id, 10))
}
