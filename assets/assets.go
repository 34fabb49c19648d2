// Package assets embeds static resources shipped with the binaries.
package assets

import _ "embed"

// SystemInstruction is the system prompt that opens every conversation.
//
//go:embed system_instruction.txt
var SystemInstruction string
