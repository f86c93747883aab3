package queue

// SetPID overrides the owning process id recorded by StartBatch.
func (s *Store) SetPID(pid int) {
	s.pid = pid
}
