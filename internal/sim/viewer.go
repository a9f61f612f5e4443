package sim

import (
	"sync"
	"time"

	"github.com/race/drive/config"
)

// ViewerConnection is the transport a viewer is reached through.
type ViewerConnection interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() string
}

// ViewerInfo is a snapshot of a viewer for stats.
type ViewerInfo struct {
	ID          uint16    `json:"id"`
	ConnID      string    `json:"connId"`
	RemoteAddr  string    `json:"remoteAddr"`
	Inputs      uint64    `json:"inputs"`
	OverBudget  uint64    `json:"overBudgetInputs"`
	LastInputAt time.Time `json:"lastInputAt"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Viewer is a connected client. Every viewer receives frames; any of them
// may send input.
type Viewer struct {
	mu sync.Mutex

	ID         uint16
	ConnID     string
	Connection ViewerConnection

	inputsThisTick int       // Reset by the session at every tick
	inputs         uint64    // All input messages received
	overBudget     uint64    // Messages past MaxInputsPerTick in their tick
	lastInput      time.Time // Zero until the first input

	ConnectedAt time.Time
}

// NewViewer creates a viewer.
func NewViewer(id uint16, connID string, conn ViewerConnection) *Viewer {
	return &Viewer{
		ID:          id,
		ConnID:      connID,
		Connection:  conn,
		ConnectedAt: time.Now(),
	}
}

// CountInput records an input message and reports whether it was within
// this tick's budget. Input carries held state, so the caller applies it
// either way; the count only flags viewers flooding the session.
func (v *Viewer) CountInput() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.inputs++
	v.lastInput = time.Now()
	v.inputsThisTick++
	if v.inputsThisTick > config.MaxInputsPerTick {
		v.overBudget++
		return false
	}
	return true
}

// ResetInputCount resets the input counter for this tick
func (v *Viewer) ResetInputCount() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.inputsThisTick = 0
}

// Info returns a snapshot of the viewer (thread-safe)
func (v *Viewer) Info() ViewerInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	return ViewerInfo{
		ID:          v.ID,
		ConnID:      v.ConnID,
		RemoteAddr:  v.Connection.RemoteAddr(),
		Inputs:      v.inputs,
		OverBudget:  v.overBudget,
		LastInputAt: v.lastInput,
		ConnectedAt: v.ConnectedAt,
	}
}
