package relay

import (
	"fmt"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/bus"
	"chatrelay/pkg/store"
)

// Heartbeat records the client as online. Clients send this periodically
// while the app is foregrounded; the presence sweeper handles the crash
// case where no explicit offline ever arrives.
func (s *Service) Heartbeat(ident auth.Identity) (string, error) {
	t, err := s.ownThread(ident)
	if err != nil {
		return "", err
	}
	ts := now()
	if err := store.SetPresence(t.ID, true, ts); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if s.Bus != nil && !t.Online {
		on := true
		s.Bus.Publish(bus.Event{Kind: "presence", Thread: t.ID, TS: ts, Online: &on})
	}
	return t.ID, nil
}

// Offline records an explicit disconnect.
func (s *Service) Offline(ident auth.Identity) (string, error) {
	t, err := s.ownThread(ident)
	if err != nil {
		return "", err
	}
	ts := now()
	if err := store.SetPresence(t.ID, false, ts); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if s.Bus != nil {
		off := false
		s.Bus.Publish(bus.Event{Kind: "presence", Thread: t.ID, TS: ts, Online: &off})
	}
	return t.ID, nil
}
