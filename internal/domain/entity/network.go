package entity

// NetworkDefinition describes a chain the client knows by name.
// Unknown ids are still usable; the definition only labels them.
type NetworkDefinition struct {
	ID               NetworkID `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	Identifier       string    `json:"identifier" yaml:"identifier"`
	NativeSymbol     string    `json:"nativeSymbol" yaml:"nativeSymbol"`
	BlockExplorerURL string    `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
}
