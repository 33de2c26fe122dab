package task

// State is the lifecycle stage of a task.
type State int32

const (
	// Created tasks have not started their worker yet.
	Created State = iota
	// Starting tasks are priming their buffers.
	Starting
	// Running tasks produce blocks.
	Running
	// ExitRequested tasks are waiting for the worker to return.
	ExitRequested
	// Terminated tasks are stopped and drained.
	Terminated
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ExitRequested:
		return "exit requested"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}
