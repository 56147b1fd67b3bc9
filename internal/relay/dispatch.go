package relay

import "github.com/wtask/relay/internal/relay/registry"

// broadcast - sends text to every registered connection except the excluded one
// and returns number of connections which have accepted the text.
// Failure of single recipient does not affect others.
func (s *Server) broadcast(text string, excluded registry.Handle) int {
	if s.history != nil {
		s.history.Push(text)
	}
	delivered := 0
	for c := range s.clients.Others(excluded) {
		if err := c.Sender.Send(text); err != nil {
			logError(s.logger, "Message to", c.Name, "is dropped, handle:", c.Handle, "cause:", err)
			continue
		}
		delivered++
	}
	return delivered
}
