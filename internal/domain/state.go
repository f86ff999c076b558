package domain

// ConnectionState is a snapshot of the process-wide connectivity state.
type ConnectionState struct {
	Online    bool
	Syncing   bool
	LastError string
}
