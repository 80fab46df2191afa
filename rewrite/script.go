package rewrite

import "fmt"

const (
	ScriptPath  = "/replace_address.sh"
	MappingPath = "/dummy_addr_map.txt"
)

// Script renders the boot-time script that rewrites addresses with the
// agent binary at binaryPath.
func Script(binaryPath, mapPath string) string {
	return fmt.Sprintf("#!/bin/sh\nexec %s rewrite --map %s\n", binaryPath, mapPath)
}
