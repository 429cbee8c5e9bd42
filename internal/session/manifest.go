package session

// ThreadInfo is one entry of a session manifest's thread list.
type ThreadInfo struct {
	ID        uint32 `json:"id"`
	HasDetail bool   `json:"has_detail"`
}

// ModuleInfo describes one loaded image the agent observed.
type ModuleInfo struct {
	ModuleID    uint64 `json:"module_id"`
	Path        string `json:"path"`
	BaseAddress uint64 `json:"base_address"`
	Size        uint64 `json:"size"`
	UUID        string `json:"uuid"`
}

// SymbolInfo maps a raw function_id to a human-readable name. FunctionID is
// serialized as a "0x…"-prefixed hex string per the on-disk manifest
// format and is kept as that string; this package does not parse it into
// an integer.
type SymbolInfo struct {
	FunctionID  string `json:"function_id"`
	ModuleID    uint64 `json:"module_id"`
	SymbolIndex uint32 `json:"symbol_index"`
	Name        string `json:"name"`
}

// ClockType names the monotonic clock source the agent used.
type ClockType string

const (
	ClockMachContinuous ClockType = "mach_continuous"
	ClockQPC            ClockType = "qpc"
	ClockBoottime       ClockType = "boottime"
)

// Manifest is the per-session manifest.json document.
type Manifest struct {
	Threads     []ThreadInfo `json:"threads"`
	TimeStartNs uint64       `json:"time_start_ns"`
	TimeEndNs   uint64       `json:"time_end_ns"`
	ClockType   ClockType    `json:"clock_type"`
	Modules     []ModuleInfo `json:"modules"`
	Symbols     []SymbolInfo `json:"symbols"`
}
