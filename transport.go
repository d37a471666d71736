package conduit

// TransportRole tells whether a pipeline runs on the sending or the receiving
// side of a transport.
type TransportRole int

const (
	RoleSender TransportRole = iota
	RoleReceiver
)

func (r TransportRole) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}

// InProcessTransportName is the transport name of calls that never leave the process.
const InProcessTransportName = "in-process"

// TransportType describes the boundary a pipeline run happens on. Middleware
// can branch on it, e.g. to only log payloads for remote calls.
type TransportType struct {
	name string
	role TransportRole
}

// NewTransportType returns an immutable transport descriptor.
func NewTransportType(name string, role TransportRole) TransportType {
	return TransportType{name: name, role: role}
}

// InProcessSender describes the caller side of an in-process call.
func InProcessSender() TransportType {
	return NewTransportType(InProcessTransportName, RoleSender)
}

// InProcessReceiver describes the handler side of an in-process call.
func InProcessReceiver() TransportType {
	return NewTransportType(InProcessTransportName, RoleReceiver)
}

func (t TransportType) Name() string { return t.name }

func (t TransportType) Role() TransportRole { return t.role }

func (t TransportType) IsInProcess() bool { return t.name == InProcessTransportName }

func (t TransportType) IsSender() bool { return t.role == RoleSender }

func (t TransportType) IsReceiver() bool { return t.role == RoleReceiver }

func (t TransportType) String() string {
	return t.name + "/" + t.role.String()
}
