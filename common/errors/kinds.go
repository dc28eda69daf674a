package errors

type Kind int

const (
	Unknown Kind = iota

	// The host directory could not be contacted. Fatal to remote mode,
	// callers fall back to local execution.
	RegistryUnreachable

	// A host stopped answering status probes. Never surfaced to callers,
	// the registry purges the host instead.
	HostUnresponsive

	// No viable (threads, parallelism) configuration exists.
	SchedulingInfeasible

	// Load, start, poll or collect failed on a worker session.
	JobTransportFailure

	// The batch was cancelled by the caller.
	UserAborted

	// A wave was torn down because a host's jobs fell behind.
	ProgressSkew
)

func (k Kind) String() string {
	switch k {
	case RegistryUnreachable:
		return "RegistryUnreachable"
	case HostUnresponsive:
		return "HostUnresponsive"
	case SchedulingInfeasible:
		return "SchedulingInfeasible"
	case JobTransportFailure:
		return "JobTransportFailure"
	case UserAborted:
		return "UserAborted"
	case ProgressSkew:
		return "ProgressSkew"
	default:
		return "Unknown"
	}
}
