package events

import "encoding/json"

// ChannelSender implements Sender by writing JSON-encoded notifications to a channel.
// Sends never block: a full channel drops the notification.
type ChannelSender struct {
	ch chan<- string
}

// NewChannelSender creates a sender writing to ch
func NewChannelSender(ch chan<- string) *ChannelSender {
	return &ChannelSender{ch: ch}
}

// SendNotification marshals the notification and offers it to the channel
func (s *ChannelSender) SendNotification(method string, params map[string]any) error {
	data, err := json.Marshal(map[string]any{
		"method": method,
		"params": params,
	})
	if err != nil {
		return err
	}

	select {
	case s.ch <- string(data):
		return nil
	default:
		return ErrDropped
	}
}
