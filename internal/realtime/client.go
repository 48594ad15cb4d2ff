package realtime

import (
	"sort"

	"github.com/google/uuid"
)

// SSEClient is one open event stream. Its channel set is guarded by the hub's lock.
type SSEClient struct {
	ID       uuid.UUID
	Outbound chan SSEMessage

	channels map[string]struct{}
	done     chan struct{}
}

func (c *SSEClient) join(channel string) bool {
	if _, ok := c.channels[channel]; ok {
		return false
	}
	c.channels[channel] = struct{}{}
	return true
}

func (c *SSEClient) channelList() []string {
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}
