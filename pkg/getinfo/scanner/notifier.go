package scanner

import "time"

func (s *Scanner) notify() {
	defer s.wg.Done()
	defer s.recoverFatal("notifier")

	ticker := time.NewTicker(s.opts.NotifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.flush()
			return
		case <-ticker.C:
			if err := s.applyPendingFocus(); err != nil {
				s.fail(err)
				return
			}
			s.flush()
		}
	}
}
