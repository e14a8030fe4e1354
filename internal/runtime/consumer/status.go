package consumer

// ReaderStatus is a snapshot of one reader.
type ReaderStatus struct {
	Index int    `json:"index"`
	State string `json:"state"`
}

// QueueStatus is a snapshot of one subscription.
type QueueStatus struct {
	Queue      string         `json:"queue"`
	URL        string         `json:"url"`
	DeadLetter string         `json:"deadLetter,omitempty"`
	Started    bool           `json:"started"`
	Running    int            `json:"running"`
	Readers    []ReaderStatus `json:"readers"`
}

// Status returns a snapshot of every subscription ordered by queue name.
func (s *Supervisor) Status() []QueueStatus {
	names := s.names()
	out := make([]QueueStatus, 0, len(names))
	for _, name := range names {
		sub, err := s.subscription(name)
		if err != nil {
			continue
		}
		out = append(out, sub.status())
	}
	return out
}

// QueueStatus returns the snapshot for one subscription.
func (s *Supervisor) QueueStatus(queue string) (QueueStatus, error) {
	sub, err := s.subscription(queue)
	if err != nil {
		return QueueStatus{}, err
	}
	return sub.status(), nil
}

func (sub *subscription) status() QueueStatus {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	st := QueueStatus{
		Queue:      sub.queue.Name(),
		URL:        sub.queue.URL,
		DeadLetter: sub.queue.DeadLetter(),
		Started:    sub.started,
		Readers:    make([]ReaderStatus, 0, len(sub.readers)),
	}
	for _, r := range sub.readers {
		state := r.state.load()
		if state == StateRunning {
			st.Running++
		}
		st.Readers = append(st.Readers, ReaderStatus{Index: r.index, State: state.String()})
	}
	return st
}
