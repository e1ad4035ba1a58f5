package protocol

// Response is one outbound frame. Empty fields are omitted so each response
// carries only the keys its branch defines.
type Response struct {
	Room   string `json:"room,omitempty"`
	Bed    string `json:"bed,omitempty"`
	State  string `json:"state,omitempty"`
	Action string `json:"action,omitempty"`
	DataOn string `json:"dataOn,omitempty"`
	Status string `json:"status,omitempty"`
	Erro   string `json:"erro,omitempty"`
}

func OK() Response {
	return Response{Status: StatusOK}
}

func NoContent() Response {
	return Response{Status: StatusNoContent}
}

func ResetInstruction() Response {
	return Response{Status: StatusReset}
}

func Rejected(reason string) Response {
	return Response{Status: StatusBadRequest, Erro: reason}
}

func UpstreamFailure(reason string) Response {
	return Response{Status: StatusUpstream, Erro: reason}
}

// StateAccepted echoes an applied state report.
func StateAccepted(msg StateReport) Response {
	return Response{Room: msg.Room, Bed: msg.Tag, State: msg.State, Status: StatusOK}
}

// CommandDelivery hands a pending command to the polling tag.
func CommandDelivery(tag, action, dataOn string) Response {
	return Response{Bed: tag, Action: action, DataOn: dataOn}
}

// CommandQueued acknowledges a command submission.
func CommandQueued(tag, action, dataOn string) Response {
	return Response{Bed: tag, Action: action, DataOn: dataOn, Status: StatusOK}
}

// Failed reports whether the response carries an error status.
func (r Response) Failed() bool {
	return r.Status == StatusBadRequest || r.Status == StatusUpstream
}
