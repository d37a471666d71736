package eventing

// Subscription removes an observer from its dispatcher.
type Subscription interface {
	Unsubscribe()
}

type subs struct {
	dispatcher *Dispatcher
	eventType  string
	observer   any
}

func (s *subs) Unsubscribe() {
	d := s.dispatcher
	d.mu.Lock()
	defer d.mu.Unlock()

	observers := d.observers[s.eventType]
	newList := make([]any, 0, len(observers))

	for _, o := range observers {
		if o != s.observer {
			newList = append(newList, o)
		}
	}

	if len(newList) == 0 {
		delete(d.observers, s.eventType)
		return
	}
	d.observers[s.eventType] = newList
}
