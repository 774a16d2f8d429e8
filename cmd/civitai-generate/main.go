package main

import (
	"go-civitai-generate/cmd/civitai-generate/cmd"
)

func main() {
	// Execute the root command (defined in cmd/root.go)
	cmd.Execute()
}
