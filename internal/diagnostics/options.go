package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildOptions decodes either a single string or a JSON array of strings
// into one space-joined compiler option string, mirroring the permissive
// shape workspace/configuration results and initializationOptions can send.
// Modeled the same way go.lsp.dev/protocol custom-unmarshals permissive LSP
// fields (e.g. DocumentURI).
type BuildOptions string

// UnmarshalJSON implements json.Unmarshaler.
func (b *BuildOptions) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*b = BuildOptions(single)
		return nil
	}

	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("build options must be a string or array of strings: %w", err)
	}
	*b = BuildOptions(strings.Join(parts, " "))
	return nil
}
