package progress

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

// Reply answers a client frame. Only ping is understood; every other frame
// is ignored and never touches job state
func Reply(frame []byte, now time.Time) (*api.PongMessage, bool) {
	typ := gjson.GetBytes(frame, "type")
	if !typ.Exists() || api.MessageType(typ.String()) != api.MessagePing {
		return nil, false
	}
	return &api.PongMessage{
		Type:      api.MessagePong,
		Timestamp: now.UnixMilli(),
	}, true
}
