package interfaces

type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
}

// PersisterInterface is the state the scheduler saves on every tick and restores at startup.
type PersisterInterface interface {
	Restore() error
	Persist() error
}
