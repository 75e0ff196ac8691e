package ir

// Session is one journaled engine lifetime: a graph, a root atom and the
// dispatches recorded against them.
type Session struct {
	ID        string `json:"id"`
	GraphHash string `json:"graph_hash"`
	Root      string `json:"root"`
}

// DispatchRecord is the journal entry for one committed dispatch.
//
// Payload and Key are IR so the event can be re-dispatched on replay.
// Changed and StateHash are the observed result the replay compares against.
// Attached and Detached list atoms added to or removed from the engine's
// tree (lazy subscriptions) since the previous record; replay applies them
// before re-dispatching.
type DispatchRecord struct {
	ID            string   `json:"id"`
	Session       string   `json:"session"`
	Seq           int64    `json:"seq"`
	Type          string   `json:"type"`
	Payload       IRValue  `json:"payload"`
	Key           IRValue  `json:"key"`
	Changed       []string `json:"changed"`
	StateHash     string   `json:"state_hash"`
	Attached      []string `json:"attached,omitempty"`
	Detached      []string `json:"detached,omitempty"`
	EngineVersion string   `json:"engine_version"`
	IRVersion     string   `json:"ir_version"`
}
