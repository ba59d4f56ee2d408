package processor

// Observer receives a run's events. The coordinator calls it from its own
// goroutine, never from workers, so implementations must return promptly.
type Observer interface {
	OnLog(line string)
	OnProgress(completed, total int)
	OnFinished(summary Summary)
}

// OutcomeObserver is implemented by observers that also want each structured
// result, such as metrics.
type OutcomeObserver interface {
	OnOutcome(res Result)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) OnLog(string)        {}
func (NopObserver) OnProgress(int, int) {}
func (NopObserver) OnFinished(Summary)  {}

// Observers fans every event out to each member in order.
type Observers []Observer

func (o Observers) OnLog(line string) {
	for _, obs := range o {
		obs.OnLog(line)
	}
}

func (o Observers) OnProgress(completed, total int) {
	for _, obs := range o {
		obs.OnProgress(completed, total)
	}
}

func (o Observers) OnFinished(summary Summary) {
	for _, obs := range o {
		obs.OnFinished(summary)
	}
}

func (o Observers) OnOutcome(res Result) {
	for _, obs := range o {
		if oo, ok := obs.(OutcomeObserver); ok {
			oo.OnOutcome(res)
		}
	}
}

// EventKind tags an Event.
type EventKind int

const (
	EventLog EventKind = iota
	EventProgress
	EventOutcome
	EventFinished
)

// Event is the queued form of an observer callback.
type Event struct {
	Kind      EventKind
	Line      string
	Completed int
	Total     int
	Result    Result
	Summary   Summary
}

// ChannelObserver forwards callbacks as Events on a channel, decoupling the
// coordinator from a consumer running elsewhere (the terminal UI). Sends
// block while the channel is full, so the consumer must keep draining it
// until the EventFinished event arrives.
type ChannelObserver struct {
	events chan<- Event
}

// NewChannelObserver returns an observer sending on events.
func NewChannelObserver(events chan<- Event) ChannelObserver {
	return ChannelObserver{events: events}
}

func (c ChannelObserver) OnLog(line string) {
	c.events <- Event{Kind: EventLog, Line: line}
}

func (c ChannelObserver) OnProgress(completed, total int) {
	c.events <- Event{Kind: EventProgress, Completed: completed, Total: total}
}

func (c ChannelObserver) OnOutcome(res Result) {
	c.events <- Event{Kind: EventOutcome, Result: res}
}

func (c ChannelObserver) OnFinished(summary Summary) {
	c.events <- Event{Kind: EventFinished, Summary: summary}
}
